package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transitlab/transit-sweep/internal/api"
	"github.com/transitlab/transit-sweep/internal/app"
	"github.com/transitlab/transit-sweep/internal/archive"
	"github.com/transitlab/transit-sweep/internal/config"
	"github.com/transitlab/transit-sweep/internal/events"
	"github.com/transitlab/transit-sweep/internal/logging"
	"github.com/transitlab/transit-sweep/internal/runstore"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface the commands use. It lets tests inject
// a mock container.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Archiver() archive.Provider
	Recorder() runstore.Recorder
	Publisher() events.Publisher
	Status() *api.StatusStore
}

// newApp is the application factory. It is a variable so tests can replace
// it with a mock factory.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command. The persistent hooks
// load configuration, build the service container and tear it down.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transitsweep",
		Short: "Fetches and parses transit performance data from the reporting portal.",
		Long: `transitsweep pulls on-time performance and ridership figures for every
transit route from the public reporting portal and combines the raw replies
into per-dataset CSV files. The sweep command runs the whole pipeline; the
fetch and parse commands run one step at a time, and graph renders a combined
CSV as a per-route chart.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logging.InitLogger(cfg.Logging.Development)

			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional, env vars use the SWEEP_ prefix)")

	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newParseCmd())
	cmd.AddCommand(newGraphCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
