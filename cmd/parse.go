package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transitlab/transit-sweep/internal/parse"
)

// newParseCmd creates the 'parse' subcommand: combines already-fetched
// export files into one CSV without refetching anything.
func newParseCmd() *cobra.Command {
	var (
		inputGlob string
		output    string
		asPercent bool
	)

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Combines raw portal replies into one CSV",
		Long: `Reads every export file matching the input glob, extracts each route's
monthly figures and writes one CSV with a row per route and a column per
year-month. Files that cannot be parsed are skipped with a warning.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			combiner := parse.NewCombiner(
				parse.Options{AsPercent: asPercent},
				appInstance.Logger(),
			)
			result, err := combiner.Combine(inputGlob, output)
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}

			appInstance.Logger().Info("Parse finished",
				zap.Int("files_matched", result.FilesMatched),
				zap.Int("files_skipped", result.FilesSkipped),
				zap.Int("routes", result.Routes),
				zap.String("output", output),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputGlob, "input", "", "glob matching raw export files, e.g. 'export/otp-weekday-data/*.json'")
	cmd.Flags().StringVar(&output, "output", "", "path of the CSV to write")
	cmd.Flags().BoolVar(&asPercent, "as-percent", false, "multiply values by 100 before writing")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
