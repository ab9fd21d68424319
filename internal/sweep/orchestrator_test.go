package sweep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/transitlab/transit-sweep/internal/archive"
	"github.com/transitlab/transit-sweep/internal/dataset"
	"github.com/transitlab/transit-sweep/internal/events"
	"github.com/transitlab/transit-sweep/internal/fetch"
	"github.com/transitlab/transit-sweep/internal/parse"
	"github.com/transitlab/transit-sweep/internal/runstore"
)

const testReply = `{"results":[{"result":{"data":{"dsr":{"DS":[{
  "SH":[{"DM1":[{"G1":"2023"}]}],
  "PH":[{"DM0":[{"G0":0,"X":[{"M0":0.5}]}]}],
  "ValueDicts":{"D0":["Jan","Feb","Mar","Apr","May","Jun","Jul","Aug","Sep","Oct","Nov","Dec"]}
}]}}}}]}`

// stubFetcher mimics the retrieval step: it records which inputs each pair
// was invoked with and writes portal replies into the pair's export dir.
type stubFetcher struct {
	mu       sync.Mutex
	requests []fetch.Request
	delay    time.Duration
	failFor  map[string]error // keyed by request-body file name
}

func (s *stubFetcher) Fetch(ctx context.Context, req fetch.Request) (fetch.Summary, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return fetch.Summary{}, ctx.Err()
		}
	}
	if err, ok := s.failFor[filepath.Base(req.RequestBodyPath)]; ok {
		return fetch.Summary{}, err
	}

	if err := os.MkdirAll(req.ExportDir, 0o750); err != nil {
		return fetch.Summary{}, err
	}
	path := filepath.Join(req.ExportDir, "39_2026_02_02-19_48.json")
	if err := os.WriteFile(path, []byte(testReply), 0o600); err != nil {
		return fetch.Summary{}, err
	}
	return fetch.Summary{Succeeded: 1, Results: []fetch.RouteResult{{Route: "39", Path: path, StatusCode: 200}}}, nil
}

func (s *stubFetcher) seen() []fetch.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fetch.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func newTestOrchestrator(t *testing.T, fetcher FetchRunner, exportRoot string) (*Orchestrator, *events.MemoryPublisher) {
	t.Helper()
	pub := events.NewMemoryPublisher()
	o := New(
		Config{
			ExportRoot:       exportRoot,
			RequestBodiesDir: "request-bodies",
			RoutesFile:       "routes.txt",
			Concurrency:      6,
		},
		fetcher,
		parse.NewCombiner(parse.Options{}, zap.NewNop()),
		runstore.NoOpRecorder{},
		pub,
		archive.NoOpProvider{},
		zap.NewNop(),
	)
	return o, pub
}

func TestRunProducesOneCSVPerPair(t *testing.T) {
	t.Parallel()

	exportRoot := filepath.Join(t.TempDir(), "export")
	o, pub := newTestOrchestrator(t, &stubFetcher{}, exportRoot)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Outcomes, 6)

	for _, pair := range dataset.Pairs() {
		assert.FileExists(t, pair.CSVPath(exportRoot), "missing CSV for %s", pair)
		assert.DirExists(t, pair.ExportDir(exportRoot), "missing export dir for %s", pair)
	}

	entries, err := os.ReadDir(filepath.Join(exportRoot, dataset.ParsedDataDirName))
	require.NoError(t, err)
	assert.Len(t, entries, 6)

	assert.Len(t, pub.Events(), 6)
}

func TestRunMatchesRequestBodyToPair(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{}
	exportRoot := filepath.Join(t.TempDir(), "export")
	o, _ := newTestOrchestrator(t, fetcher, exportRoot)

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	requests := fetcher.seen()
	require.Len(t, requests, 6)
	for _, req := range requests {
		// otp-saturday-data must pair with otp_saturday.json, never another
		// pair's body.
		dir := filepath.Base(req.ExportDir)
		body := filepath.Base(req.RequestBodyPath)
		var matched bool
		for _, pair := range dataset.Pairs() {
			if pair.ExportDirName() == dir {
				assert.Equal(t, pair.RequestBodyName(), body)
				assert.Equal(t, string(pair.Type), req.Dataset)
				matched = true
			}
		}
		assert.True(t, matched, "unexpected export dir %s", dir)
		assert.Equal(t, "routes.txt", req.RoutesFile)
	}
}

func TestRunResetsStaleExportRoot(t *testing.T) {
	t.Parallel()

	exportRoot := filepath.Join(t.TempDir(), "export")
	stale := filepath.Join(exportRoot, "stale-dir")
	require.NoError(t, os.MkdirAll(stale, 0o750))
	staleCSV := filepath.Join(exportRoot, dataset.ParsedDataDirName, "stale.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(staleCSV), 0o750))
	require.NoError(t, os.WriteFile(staleCSV, []byte("old"), 0o600))

	o, _ := newTestOrchestrator(t, &stubFetcher{}, exportRoot)
	_, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.NoDirExists(t, stale)
	assert.NoFileExists(t, staleCSV)

	// Running twice yields the same directory set, not an accumulation.
	_, err = o.Run(context.Background())
	require.NoError(t, err)
	entries, err := os.ReadDir(exportRoot)
	require.NoError(t, err)
	assert.Len(t, entries, 7) // 6 pair dirs + parsed_data
}

func TestRunIsolatesPairFailures(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{
		failFor: map[string]error{
			"ridership_sunday.json": fmt.Errorf("request body missing"),
		},
	}
	exportRoot := filepath.Join(t.TempDir(), "export")
	o, pub := newTestOrchestrator(t, fetcher, exportRoot)

	report, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 6")
	assert.Equal(t, 1, report.Failed)

	for _, outcome := range report.Outcomes {
		if outcome.Pair.Type == dataset.TypeRidership && outcome.Pair.Period == dataset.PeriodSunday {
			assert.Error(t, outcome.FetchErr)
			// Parse still ran against the empty glob and failed on its own.
			assert.Error(t, outcome.ParseErr)
			assert.NoFileExists(t, outcome.CSVPath)
			continue
		}
		assert.NoError(t, outcome.FetchErr, "pair %s", outcome.Pair)
		assert.NoError(t, outcome.ParseErr, "pair %s", outcome.Pair)
		assert.FileExists(t, outcome.CSVPath)
	}

	// The failing pair's event carries the error text.
	var failedEvents int
	for _, event := range pub.Events() {
		if event.ErrorText != "" {
			failedEvents++
			assert.Equal(t, "ridership", event.Dataset)
			assert.Equal(t, "sunday", event.Period)
			assert.Empty(t, event.CSVPath)
		}
	}
	assert.Equal(t, 1, failedEvents)
}

func TestRunPipelinesAreConcurrent(t *testing.T) {
	t.Parallel()

	const delay = 150 * time.Millisecond
	fetcher := &stubFetcher{delay: delay}
	exportRoot := filepath.Join(t.TempDir(), "export")
	o, _ := newTestOrchestrator(t, fetcher, exportRoot)

	start := time.Now()
	_, err := o.Run(context.Background())
	elapsed := time.Since(start)
	require.NoError(t, err)

	// Six serialized pipelines would take >= 900ms; concurrent ones stay
	// close to a single pipeline's time.
	assert.Less(t, elapsed, 3*delay, "pipelines did not run concurrently")
}

func TestRunArchivesParsedCSVs(t *testing.T) {
	t.Parallel()

	exportRoot := filepath.Join(t.TempDir(), "export")
	archiveDir := filepath.Join(t.TempDir(), "archive")
	provider, err := archive.NewLocalProvider(archiveDir)
	require.NoError(t, err)

	o := New(
		Config{
			ExportRoot:       exportRoot,
			RequestBodiesDir: "request-bodies",
			RoutesFile:       "routes.txt",
			Concurrency:      6,
		},
		&stubFetcher{},
		parse.NewCombiner(parse.Options{}, zap.NewNop()),
		runstore.NoOpRecorder{},
		events.NoOpPublisher{},
		provider,
		zap.NewNop(),
	)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	for _, pair := range dataset.Pairs() {
		assert.FileExists(t, filepath.Join(archiveDir, report.RunID, pair.CSVName()))
	}
}
