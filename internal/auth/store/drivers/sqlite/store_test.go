package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"github.com/aussiebroadwan/admitgate/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/admitgate/internal/auth/store/storetest"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations(context.Background()))
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, newMemoryStore)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth.db")

	s, err := sqlite.NewStore(sqlite.FileDSN(path))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations(ctx))
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	// Reopening runs migrations as a no-op
	s, err = sqlite.NewStore(sqlite.FileDSN(path))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.ApplyMigrations(ctx))

	storetest.RunAccounts(t, func(t *testing.T) store.Store {
		fresh, err := sqlite.NewStore(sqlite.FileDSN(filepath.Join(t.TempDir(), "auth.db")))
		require.NoError(t, err)
		t.Cleanup(func() { _ = fresh.Close() })
		require.NoError(t, fresh.ApplyMigrations(ctx))
		return fresh
	})
}
