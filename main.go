// The main package for the transitsweep executable.
package main

import (
	"github.com/transitlab/transit-sweep/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
