// Package sweep orchestrates the full dataset sweep: every (type, period)
// pair runs fetch-then-parse as one pipeline, all pipelines run concurrently,
// and the run joins on every pipeline before reporting.
package sweep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/transitlab/transit-sweep/internal/archive"
	"github.com/transitlab/transit-sweep/internal/dataset"
	"github.com/transitlab/transit-sweep/internal/events"
	"github.com/transitlab/transit-sweep/internal/fetch"
	"github.com/transitlab/transit-sweep/internal/id/uuid"
	"github.com/transitlab/transit-sweep/internal/metrics"
	"github.com/transitlab/transit-sweep/internal/parse"
	"github.com/transitlab/transit-sweep/internal/runstore"
)

// Config controls a sweep run.
type Config struct {
	ExportRoot       string
	RequestBodiesDir string
	RoutesFile       string
	Concurrency      int
}

// FetchRunner runs one pair's fetch step.
type FetchRunner interface {
	Fetch(ctx context.Context, req fetch.Request) (fetch.Summary, error)
}

// ParseRunner runs one pair's parse step.
type ParseRunner interface {
	Combine(pattern, outputPath string) (parse.Result, error)
}

// PairOutcome records everything that happened to one pair pipeline.
type PairOutcome struct {
	Pair       dataset.Pair
	FetchErr   error
	ParseErr   error
	Fetched    fetch.Summary
	Parsed     parse.Result
	CSVPath    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether either step of the pipeline errored.
func (o PairOutcome) Failed() bool {
	return o.FetchErr != nil || o.ParseErr != nil
}

// RunReport summarizes a whole sweep.
type RunReport struct {
	RunID    string
	Outcomes []PairOutcome
	Failed   int
}

// RunObserver receives run lifecycle notifications, for status surfaces.
type RunObserver interface {
	RunStarted(runID string, pairs int)
	RunFinished(report RunReport)
}

// Orchestrator wires the fetch and parse steps to their collaborators.
type Orchestrator struct {
	cfg       Config
	fetcher   FetchRunner
	combiner  ParseRunner
	recorder  runstore.Recorder
	publisher events.Publisher
	archiver  archive.Provider
	idGen     *uuid.Generator
	logger    *zap.Logger
	observer  RunObserver
}

// SetObserver registers an optional run lifecycle observer.
func (o *Orchestrator) SetObserver(obs RunObserver) {
	o.observer = obs
}

// New constructs an Orchestrator. Recorder, publisher and archiver accept
// the package's no-op implementations when the feature is not configured.
func New(
	cfg Config,
	fetcher FetchRunner,
	combiner ParseRunner,
	recorder runstore.Recorder,
	publisher events.Publisher,
	archiver archive.Provider,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = len(dataset.Pairs())
	}
	metrics.Init()
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		combiner:  combiner,
		recorder:  recorder,
		publisher: publisher,
		archiver:  archiver,
		idGen:     uuid.NewUUIDGenerator(),
		logger:    logger,
	}
}

// Run resets the export tree, runs every pair pipeline concurrently, joins on
// all of them, and returns the per-pair report. The returned error is non-nil
// when any pair failed, but a failing pair never prevents the others from
// completing.
func (o *Orchestrator) Run(ctx context.Context) (RunReport, error) {
	runID, err := o.idGen.NewID()
	if err != nil {
		return RunReport{}, err
	}

	if err := o.resetExportRoot(); err != nil {
		return RunReport{RunID: runID}, err
	}

	pairs := dataset.Pairs()
	outcomes := make([]PairOutcome, len(pairs))

	if o.observer != nil {
		o.observer.RunStarted(runID, len(pairs))
	}
	o.logger.Info("Sweep starting",
		zap.String("run_id", runID),
		zap.Int("pairs", len(pairs)),
		zap.Int("concurrency", o.cfg.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, pair := range pairs {
		g.Go(func() error {
			outcomes[i] = o.runPair(gctx, runID, pair)
			return nil
		})
	}
	// Pipelines never return errors through the group; the join only waits.
	_ = g.Wait()

	report := RunReport{RunID: runID, Outcomes: outcomes}
	for _, outcome := range outcomes {
		if outcome.Failed() {
			report.Failed++
		}
	}

	if o.observer != nil {
		o.observer.RunFinished(report)
	}
	o.logger.Info("Sweep finished",
		zap.String("run_id", runID),
		zap.Int("pairs", len(pairs)),
		zap.Int("failed", report.Failed),
	)

	if report.Failed > 0 {
		return report, fmt.Errorf("%d of %d pair pipelines failed", report.Failed, len(pairs))
	}
	return report, nil
}

// resetExportRoot wipes and recreates the export tree exactly once per run,
// before any pipeline starts.
func (o *Orchestrator) resetExportRoot() error {
	if err := os.RemoveAll(o.cfg.ExportRoot); err != nil {
		return fmt.Errorf("remove export root %s: %w", o.cfg.ExportRoot, err)
	}
	parsedDir := filepath.Join(o.cfg.ExportRoot, dataset.ParsedDataDirName)
	if err := os.MkdirAll(parsedDir, 0o750); err != nil {
		return fmt.Errorf("create export root %s: %w", o.cfg.ExportRoot, err)
	}
	return nil
}

func (o *Orchestrator) runPair(ctx context.Context, runID string, pair dataset.Pair) PairOutcome {
	metrics.IncActivePipelines()
	defer metrics.DecActivePipelines()

	outcome := PairOutcome{
		Pair:      pair,
		StartedAt: time.Now(),
		CSVPath:   pair.CSVPath(o.cfg.ExportRoot),
	}
	log := o.logger.With(
		zap.String("run_id", runID),
		zap.String("dataset", string(pair.Type)),
		zap.String("period", string(pair.Period)),
	)

	outcome.Fetched, outcome.FetchErr = o.fetcher.Fetch(ctx, fetch.Request{
		ExportDir:       pair.ExportDir(o.cfg.ExportRoot),
		RequestBodyPath: pair.RequestBodyPath(o.cfg.RequestBodiesDir),
		RoutesFile:      o.cfg.RoutesFile,
		Dataset:         string(pair.Type),
	})
	if outcome.FetchErr != nil {
		log.Error("Fetch step failed", zap.Error(outcome.FetchErr))
	}

	// The parse step runs regardless of the fetch outcome and combines
	// whatever the fetch step managed to write.
	parseStart := time.Now()
	outcome.Parsed, outcome.ParseErr = o.combiner.Combine(
		pair.ExportGlob(o.cfg.ExportRoot),
		outcome.CSVPath,
	)
	metrics.ObserveParse(string(pair.Type), time.Since(parseStart))
	if outcome.ParseErr != nil {
		log.Error("Parse step failed", zap.Error(outcome.ParseErr))
	} else {
		metrics.AddParsedRecords(string(pair.Type), outcome.Parsed.Routes)
	}

	outcome.FinishedAt = time.Now()
	metrics.ObservePair(string(pair.Type), string(pair.Period), outcomeStatus(outcome))

	if outcome.ParseErr == nil {
		o.archiveCSV(ctx, runID, pair, outcome.CSVPath, log)
	}
	o.recordOutcome(ctx, runID, outcome, log)
	o.publishOutcome(ctx, runID, outcome, log)

	log.Info("Pair pipeline finished",
		zap.Int("routes_fetched", outcome.Fetched.Succeeded),
		zap.Int("routes_failed", outcome.Fetched.Failed),
		zap.Bool("failed", outcome.Failed()),
		zap.Duration("elapsed", outcome.FinishedAt.Sub(outcome.StartedAt)),
	)
	return outcome
}

func (o *Orchestrator) archiveCSV(ctx context.Context, runID string, pair dataset.Pair, csvPath string, log *zap.Logger) {
	data, err := os.ReadFile(csvPath)
	if err != nil {
		log.Warn("Failed to read CSV for archiving", zap.Error(err))
		return
	}
	object := runID + "/" + pair.CSVName()
	if err := o.archiver.Save(ctx, object, data); err != nil {
		log.Warn("Failed to archive CSV", zap.String("object", object), zap.Error(err))
	}
}

func (o *Orchestrator) recordOutcome(ctx context.Context, runID string, outcome PairOutcome, log *zap.Logger) {
	rec := runstore.PairRecord{
		RunID:         runID,
		Dataset:       string(outcome.Pair.Type),
		Period:        string(outcome.Pair.Period),
		RoutesFetched: outcome.Fetched.Succeeded,
		RoutesFailed:  outcome.Fetched.Failed,
		CSVPath:       outcome.CSVPath,
		FetchError:    errText(outcome.FetchErr),
		ParseError:    errText(outcome.ParseErr),
		StartedAt:     outcome.StartedAt,
		FinishedAt:    outcome.FinishedAt,
	}
	if err := o.recorder.RecordPair(ctx, rec); err != nil {
		log.Warn("Failed to record pair outcome", zap.Error(err))
	}
}

func (o *Orchestrator) publishOutcome(ctx context.Context, runID string, outcome PairOutcome, log *zap.Logger) {
	event := events.PairCompleted{
		RunID:         runID,
		Dataset:       string(outcome.Pair.Type),
		Period:        string(outcome.Pair.Period),
		RoutesFetched: outcome.Fetched.Succeeded,
		RoutesFailed:  outcome.Fetched.Failed,
		ErrorText:     joinErrText(outcome.FetchErr, outcome.ParseErr),
		FinishedAt:    outcome.FinishedAt,
	}
	if outcome.ParseErr == nil {
		event.CSVPath = outcome.CSVPath
	}
	if err := o.publisher.PublishPairCompleted(ctx, event); err != nil {
		log.Warn("Failed to publish pair event", zap.Error(err))
	}
}

func outcomeStatus(outcome PairOutcome) string {
	if outcome.Failed() {
		return "failed"
	}
	return "succeeded"
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func joinErrText(errs ...error) string {
	var parts []string
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	return strings.Join(parts, "; ")
}
