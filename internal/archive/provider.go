// Package archive defines the providers that keep a copy of each pair's
// combined CSV after a sweep. The abstraction keeps the orchestrator
// independent of where archives land (Google Cloud Storage, a local
// directory, or nowhere).
package archive

import (
	"context"
)

// Provider defines the common interface for an archive destination.
type Provider interface {
	// Save stores data under the given object name.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider discards archives. It is the default: the sweep's primary
// outputs already live under the export root.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
