package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/transitlab/transit-sweep/internal/api"
	"github.com/transitlab/transit-sweep/internal/archive"
	"github.com/transitlab/transit-sweep/internal/config"
	"github.com/transitlab/transit-sweep/internal/events"
	"github.com/transitlab/transit-sweep/internal/runstore"
)

// mockApp satisfies the App interface without touching real providers.
type mockApp struct {
	cfg    config.Config
	closed bool
}

func (m *mockApp) Close()                      { m.closed = true }
func (m *mockApp) Config() config.Config       { return m.cfg }
func (m *mockApp) Logger() *zap.Logger         { return zap.NewNop() }
func (m *mockApp) Archiver() archive.Provider  { return archive.NoOpProvider{} }
func (m *mockApp) Recorder() runstore.Recorder { return runstore.NoOpRecorder{} }
func (m *mockApp) Publisher() events.Publisher { return events.NewMemoryPublisher() }
func (m *mockApp) Status() *api.StatusStore    { return api.NewStatusStore() }

const sampleReply = `{"results":[{"result":{"data":{"dsr":{"DS":[{
  "SH":[{"DM1":[{"G1":"2024"}]}],
  "PH":[{"DM0":[{"G0":0,"X":[{"M0":0.925}]}]}],
  "ValueDicts":{"D0":["Jan","Feb","Mar","Apr","May","Jun","Jul","Aug","Sep","Oct","Nov","Dec"]}
}]}}}}]}`

// withMockApp swaps the app factory for the duration of one test.
func withMockApp(t *testing.T, mock *mockApp) {
	t.Helper()
	original := newApp
	newApp = func(_ context.Context, cfg config.Config) (App, error) {
		mock.cfg = cfg
		return mock, nil
	}
	t.Cleanup(func() { newApp = original })
}

func TestParseCommandWritesCSV(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "39_2026_02_02-19_48.json")
	require.NoError(t, os.WriteFile(input, []byte(sampleReply), 0o600))
	output := filepath.Join(dir, "out.csv")

	mock := &mockApp{}
	withMockApp(t, mock)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"parse", "--input", filepath.Join(dir, "*.json"), "--output", output})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Route")
	assert.Contains(t, string(data), "39")
	assert.Contains(t, string(data), "0.9250")
	assert.True(t, mock.closed, "app was not closed by the post-run hook")
}

func TestParseCommandRequiresFlags(t *testing.T) {
	withMockApp(t, &mockApp{})

	cmd := newRootCmd()
	cmd.SetArgs([]string{"parse"})
	assert.Error(t, cmd.Execute())
}

func TestGraphCommandWritesChart(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "combined.csv")
	require.NoError(t, os.WriteFile(input, []byte("Route,2024-Jan,2024-Feb\n39,0.92,0.94\n"), 0o600))
	output := filepath.Join(dir, "chart.html")

	withMockApp(t, &mockApp{})

	cmd := newRootCmd()
	cmd.SetArgs([]string{"graph", "--input", input, "--output", output, "--title", "Ridership by Route"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ridership by Route")
	assert.Contains(t, string(data), "39")
}

func TestParseCommandAsPercent(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "39_2026_02_02-19_48.json")
	require.NoError(t, os.WriteFile(input, []byte(sampleReply), 0o600))
	output := filepath.Join(dir, "out.csv")

	withMockApp(t, &mockApp{})

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"parse",
		"--input", filepath.Join(dir, "*.json"),
		"--output", output,
		"--as-percent",
	})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "92.50")
}
