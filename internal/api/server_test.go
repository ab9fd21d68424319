package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/transitlab/transit-sweep/internal/dataset"
	"github.com/transitlab/transit-sweep/internal/fetch"
	"github.com/transitlab/transit-sweep/internal/sweep"
)

func newTestServer(t *testing.T) (*Server, *StatusStore) {
	t.Helper()
	store := NewStatusStore()
	return NewServer(store, zap.NewNop()), store
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLatestRunBeforeAnyRun(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/latest", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestRunReflectsReport(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	store.RunStarted("run-1", 6)

	report := sweep.RunReport{RunID: "run-1", Failed: 1}
	for _, pair := range dataset.Pairs() {
		outcome := sweep.PairOutcome{
			Pair:    pair,
			Fetched: fetch.Summary{Succeeded: 3},
			CSVPath: "/tmp/" + pair.CSVName(),
		}
		if pair.Type == dataset.TypeOTP && pair.Period == dataset.PeriodWeekday {
			outcome.FetchErr = errors.New("portal unreachable")
			outcome.ParseErr = errors.New("no export files matched")
			outcome.CSVPath = ""
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	store.RunFinished(report)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/latest", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "run-1", status.RunID)
	assert.Equal(t, "failed", status.State)
	assert.Equal(t, 6, status.Pairs)
	assert.Equal(t, 1, status.Failed)
	assert.False(t, status.StartedAt.IsZero())
	require.NotNil(t, status.FinishedAt)
	require.Len(t, status.Outcomes, 6)

	var failed int
	for _, ps := range status.Outcomes {
		if ps.Error != "" {
			failed++
			assert.Equal(t, "otp", ps.Dataset)
			assert.Equal(t, "weekday", ps.Period)
			assert.Contains(t, ps.Error, "portal unreachable")
			assert.Empty(t, ps.CSVPath)
			continue
		}
		assert.NotEmpty(t, ps.CSVPath)
	}
	assert.Equal(t, 1, failed)
}
