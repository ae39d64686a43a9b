package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/khata-app/khata/internal/auth"
	"github.com/khata-app/khata/internal/store/sqlite"
	"github.com/khata-app/khata/internal/store/storetest"
)

func TestRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend {
		store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "khata.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "khata.db")

	store, err := sqlite.New(ctx, path)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, store.CreateUser(ctx, &auth.User{ID: "u1", Name: "Sana", Email: "sana@example.com", PasswordHash: "h", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	user, err := reopened.FindByEmail(ctx, "sana@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)
}
