package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/teavision/internal/store"
)

// NewStore opens a fresh SQLite store in a temporary directory. It is closed
// when the test ends.
func NewStore(t *testing.T, opts ...store.Option) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "teavision.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
