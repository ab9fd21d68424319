// Package events publishes per-pair completion notifications so downstream
// consumers (dashboards, downstream loaders) learn when a pair's CSV is ready.
package events

import (
	"context"
	"time"
)

// PairCompleted is the payload published when one pair pipeline finishes.
type PairCompleted struct {
	RunID         string    `json:"run_id"`
	Dataset       string    `json:"dataset"`
	Period        string    `json:"period"`
	CSVPath       string    `json:"csv_path,omitempty"`
	RoutesFetched int       `json:"routes_fetched"`
	RoutesFailed  int       `json:"routes_failed"`
	ErrorText     string    `json:"error_text,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Publisher sends pair completion events.
type Publisher interface {
	PublishPairCompleted(ctx context.Context, event PairCompleted) error
	Close() error
}

// NoOpPublisher discards events.
type NoOpPublisher struct{}

// PublishPairCompleted for NoOpPublisher does nothing and returns nil.
func (NoOpPublisher) PublishPairCompleted(_ context.Context, _ PairCompleted) error { return nil }

// Close for NoOpPublisher does nothing and returns nil.
func (NoOpPublisher) Close() error { return nil }
