// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the sweep commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/transitlab/transit-sweep/internal/api"
	"github.com/transitlab/transit-sweep/internal/archive"
	"github.com/transitlab/transit-sweep/internal/config"
	"github.com/transitlab/transit-sweep/internal/events"
	"github.com/transitlab/transit-sweep/internal/logging"
	"github.com/transitlab/transit-sweep/internal/runstore"
)

// App holds the shared, long-lived services for the sweep: the logger, the
// CSV archive provider, the run recorder and the event publisher. It is
// initialized once at startup and passed to the commands that need it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	archiver  archive.Provider
	recorder  runstore.Recorder
	publisher events.Publisher
	status    *api.StatusStore
	opsServer *http.Server
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Archiver exposes the configured CSV archive provider.
func (a *App) Archiver() archive.Provider { return a.archiver }

// Recorder provides access to the run record store.
func (a *App) Recorder() runstore.Recorder { return a.recorder }

// Publisher returns the pair-completion event publisher.
func (a *App) Publisher() events.Publisher { return a.publisher }

// Status returns the store backing the ops status endpoint.
func (a *App) Status() *api.StatusStore { return a.status }

// New creates an App from configuration. It is the central point for service
// initialization and fails fast when a configured provider cannot start.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	l := logging.L
	l.Info("Initializing sweep services")

	archiver, err := newArchiver(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("initialize archive: %w", err)
	}

	recorder, err := newRecorder(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("initialize run store: %w", err)
	}

	publisher, err := newPublisher(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("initialize events: %w", err)
	}

	a := &App{
		cfg:       cfg,
		logger:    l,
		archiver:  archiver,
		recorder:  recorder,
		publisher: publisher,
		status:    api.NewStatusStore(),
	}

	if cfg.Metrics.Addr != "" {
		a.startOpsServer(cfg.Metrics.Addr)
	}

	l.Info("Sweep services initialized")
	return a, nil
}

func newArchiver(ctx context.Context, cfg config.Config, l *zap.Logger) (archive.Provider, error) {
	switch cfg.Archive.Provider {
	case "gcs":
		l.Info("Using GCS archive provider", zap.String("bucket", cfg.Archive.GCSBucket))
		return archive.NewGCSProvider(ctx, cfg.Archive.GCSBucket, cfg.Archive.Prefix, l)
	case "local":
		l.Info("Using local archive provider", zap.String("base_dir", cfg.Archive.BaseDir))
		return archive.NewLocalProvider(cfg.Archive.BaseDir)
	case "noop":
		l.Info("Using no-op archive provider, parsed CSVs stay in the export tree only")
		return archive.NoOpProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}
}

func newRecorder(ctx context.Context, cfg config.Config, l *zap.Logger) (runstore.Recorder, error) {
	switch cfg.Database.Provider {
	case "postgres":
		l.Info("Connecting to PostgreSQL run store")
		return runstore.NewPostgresRecorder(ctx, runstore.PostgresConfig{
			DSN:   cfg.Database.DSN,
			Table: cfg.Database.Table,
		})
	case "noop":
		l.Info("Using no-op run store, pair records will be discarded")
		return runstore.NoOpRecorder{}, nil
	default:
		return nil, fmt.Errorf("unknown database provider: %s", cfg.Database.Provider)
	}
}

func newPublisher(ctx context.Context, cfg config.Config, l *zap.Logger) (events.Publisher, error) {
	switch cfg.Events.Provider {
	case "pubsub":
		l.Info("Connecting to GCP Pub/Sub", zap.String("topic", cfg.Events.Topic))
		return events.NewPubSubPublisher(ctx, cfg.Events.ProjectID, cfg.Events.Topic, l)
	case "noop":
		l.Info("Using no-op event publisher, no messages will be sent")
		return events.NoOpPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events provider: %s", cfg.Events.Provider)
	}
}

func (a *App) startOpsServer(addr string) {
	server := api.NewServer(a.status, a.logger)
	a.opsServer = &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.logger.Info("Starting ops server", zap.String("addr", addr))
	go func() {
		if err := a.opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Ops server failed", zap.Error(err))
		}
	}()
}

// Close gracefully shuts down all services in the container. It is called by
// a Cobra hook after the command finishes.
func (a *App) Close() {
	a.logger.Info("Shutting down sweep services")

	if a.opsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.opsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("Error shutting down ops server", zap.Error(err))
		}
		cancel()
	}
	a.recorder.Close()
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("Error closing event publisher", zap.Error(err))
	}
	if closer, ok := a.archiver.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("Error closing archive client", zap.Error(err))
		}
	}

	// Best effort: make sure buffered log entries reach their sink.
	_ = a.logger.Sync()
}
