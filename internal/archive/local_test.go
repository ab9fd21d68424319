package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlab/transit-sweep/internal/archive"
)

func TestNewLocalProvider(t *testing.T) {
	t.Parallel()

	t.Run("creates missing dir", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "archives")
		provider, err := archive.NewLocalProvider(base)
		require.NoError(t, err)
		assert.NotNil(t, provider)
		assert.DirExists(t, base)
	})

	t.Run("empty base dir", func(t *testing.T) {
		_, err := archive.NewLocalProvider("  ")
		assert.Error(t, err)
	})

	t.Run("base is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
		_, err := archive.NewLocalProvider(path)
		assert.Error(t, err)
	})
}

func TestLocalProviderSave(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	provider, err := archive.NewLocalProvider(base)
	require.NoError(t, err)

	t.Run("writes csv", func(t *testing.T) {
		err := provider.Save(context.Background(), "run-1/otp-saturday-data.csv", []byte("Route\n39\n"))
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(base, "run-1", "otp-saturday-data.csv"))
		require.NoError(t, err)
		assert.Equal(t, "Route\n39\n", string(data))
	})

	t.Run("empty object name", func(t *testing.T) {
		assert.Error(t, provider.Save(context.Background(), "", []byte("x")))
	})

	t.Run("path traversal", func(t *testing.T) {
		assert.Error(t, provider.Save(context.Background(), "../escape.csv", []byte("x")))
	})
}

func TestNoOpProvider(t *testing.T) {
	t.Parallel()

	var provider archive.NoOpProvider
	assert.NoError(t, provider.Save(context.Background(), "anything.csv", nil))
}
