package events

import (
	"context"
	"sync"
)

// MemoryPublisher collects events in memory. Used by tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []PairCompleted
	closed bool
}

// NewMemoryPublisher creates an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// PublishPairCompleted appends the event.
func (m *MemoryPublisher) PublishPairCompleted(_ context.Context, event PairCompleted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []PairCompleted {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PairCompleted, len(m.events))
	copy(out, m.events)
	return out
}

// Closed reports whether Close was called.
func (m *MemoryPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the publisher closed.
func (m *MemoryPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
