package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transitlab/transit-sweep/internal/clock/system"
	"github.com/transitlab/transit-sweep/internal/config"
	"github.com/transitlab/transit-sweep/internal/fetch"
	"github.com/transitlab/transit-sweep/internal/parse"
	"github.com/transitlab/transit-sweep/internal/powerbi"
	"github.com/transitlab/transit-sweep/internal/sweep"
)

// newSweepCmd creates the 'sweep' subcommand, which runs the full pipeline:
// every dataset and time-period pair is fetched and parsed concurrently.
func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Runs every fetch-and-parse pipeline concurrently",
		Long: `Resets the export tree, then runs one fetch-then-parse pipeline for each
dataset and time-period pair. Each pipeline pulls every route's figures from
the reporting portal and combines the replies into one CSV. Pipelines run
concurrently and a failing pair never stops the others.`,

		RunE: runSweepCommand,
	}
	return cmd
}

func runSweepCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()

	fetcher, err := buildFetcher(cfg, appInstance)
	if err != nil {
		return err
	}
	combiner := parse.NewCombiner(
		parse.Options{AsPercent: cfg.Sweep.AsPercent},
		appInstance.Logger(),
	)

	orchestrator := sweep.New(
		sweep.Config{
			ExportRoot:       cfg.Project.ExportRoot,
			RequestBodiesDir: cfg.Project.RequestBodiesDir,
			RoutesFile:       cfg.Project.RoutesFile,
			Concurrency:      cfg.Sweep.Concurrency,
		},
		fetcher,
		combiner,
		appInstance.Recorder(),
		appInstance.Publisher(),
		appInstance.Archiver(),
		appInstance.Logger(),
	)
	orchestrator.SetObserver(appInstance.Status())

	if _, err := orchestrator.Run(cmd.Context()); err != nil {
		return fmt.Errorf("run sweep: %w", err)
	}
	return nil
}

func buildFetcher(cfg config.Config, appInstance App) (*fetch.Fetcher, error) {
	client, err := powerbi.NewClient(powerbi.Config{
		Endpoint:          cfg.PowerBI.Endpoint,
		ResourceKey:       cfg.PowerBI.ResourceKey,
		Origin:            cfg.PowerBI.Origin,
		Timeout:           cfg.HTTPTimeout(),
		RequestsPerSecond: cfg.PowerBI.RequestsPerSecond,
		Burst:             cfg.PowerBI.Burst,
	}, appInstance.Logger())
	if err != nil {
		return nil, fmt.Errorf("init portal client: %w", err)
	}
	return fetch.New(client, system.Clock{}, appInstance.Logger()), nil
}
