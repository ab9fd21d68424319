package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transitlab/transit-sweep/internal/fetch"
)

// newFetchCmd creates the 'fetch' subcommand: a single fetch invocation for
// one request body, useful for re-pulling a pair without a full sweep.
func newFetchCmd() *cobra.Command {
	var (
		exportDir   string
		requestBody string
		routesFile  string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetches raw portal replies for one request body",
		Long: `Posts the given request body to the reporting portal once per route and
writes each reply into the export directory. Unlike sweep, the export
directory is not wiped first.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if routesFile == "" {
				routesFile = appInstance.Config().Project.RoutesFile
			}

			fetcher, err := buildFetcher(appInstance.Config(), appInstance)
			if err != nil {
				return err
			}

			summary, err := fetcher.Fetch(cmd.Context(), fetch.Request{
				ExportDir:       exportDir,
				RequestBodyPath: requestBody,
				RoutesFile:      routesFile,
			})
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}

			appInstance.Logger().Info("Fetch finished",
				zap.Int("routes_succeeded", summary.Succeeded),
				zap.Int("routes_failed", summary.Failed),
			)
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d routes failed", summary.Failed, summary.Succeeded+summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exportDir, "export-dir", "", "directory to write raw replies into")
	cmd.Flags().StringVar(&requestBody, "request-body", "", "path to the portal request body JSON")
	cmd.Flags().StringVar(&routesFile, "routes", "", "routes file (defaults to the configured one)")
	_ = cmd.MarkFlagRequired("export-dir")
	_ = cmd.MarkFlagRequired("request-body")

	return cmd
}
