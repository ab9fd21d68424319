package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transitlab/transit-sweep/internal/graph"
)

// newGraphCmd creates the 'graph' subcommand: renders one combined CSV into
// an interactive per-route monthly line chart.
func newGraphCmd() *cobra.Command {
	var (
		input  string
		output string
		title  string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Renders a combined CSV as a per-route line chart",
		Long: `Reads a combined CSV produced by parse or sweep and writes a standalone
HTML line chart with one line per route over the year-month columns. Months a
route has no value for are drawn as gaps.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			renderer := graph.NewRenderer(graph.Options{Title: title}, appInstance.Logger())
			if err := renderer.Render(input, output); err != nil {
				return fmt.Errorf("graph: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "path to a combined CSV, e.g. 'export/parsed_data/otp-weekday-data.csv'")
	cmd.Flags().StringVar(&output, "output", "", "path of the chart HTML to write")
	cmd.Flags().StringVar(&title, "title", "", "chart title (defaults to the on-time performance title)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
