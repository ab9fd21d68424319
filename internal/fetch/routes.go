package fetch

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadRoutes loads the shared routes file: one route per line, blank lines
// skipped. The file is read-only input shared by every pair's fetch step.
func ReadRoutes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open routes file %s: %w", path, err)
	}
	defer f.Close()

	var routes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		route := strings.TrimSpace(scanner.Text())
		if route == "" {
			continue
		}
		routes = append(routes, route)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read routes file %s: %w", path, err)
	}
	return routes, nil
}
