// Package runstore persists per-pair sweep outcomes so runs can be audited
// after the fact.
package runstore

import (
	"context"
	"time"
)

// PairRecord is persisted for each pair pipeline of a run.
type PairRecord struct {
	RunID         string
	Dataset       string
	Period        string
	RoutesFetched int
	RoutesFailed  int
	CSVPath       string
	FetchError    string
	ParseError    string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Recorder stores pair records.
type Recorder interface {
	RecordPair(ctx context.Context, rec PairRecord) error
	Close()
}

// NoOpRecorder discards records. Used when no database is configured.
type NoOpRecorder struct{}

// RecordPair for NoOpRecorder does nothing and returns nil.
func (NoOpRecorder) RecordPair(_ context.Context, _ PairRecord) error { return nil }

// Close for NoOpRecorder does nothing.
func (NoOpRecorder) Close() {}
