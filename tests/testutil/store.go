package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/todopro/internal/store"
)

// NewTestStore returns a migrated in-memory SQLiteStore that is closed when
// the test ends. Server tests use it as the account database and client
// tests as the offline task cache.
func NewTestStore(t testing.TB) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err, "opening test store")

	t.Cleanup(func() {
		require.NoError(t, s.Close(), "closing test store")
	})
	return s
}
