package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khata-app/khata/internal/platform/db"
	"github.com/khata-app/khata/internal/store/postgres"
	"github.com/khata-app/khata/internal/store/storetest"
)

func TestRepositoryContract(t *testing.T) {
	dsn := os.Getenv("KHATA_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("KHATA_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := postgres.New(pool)
	require.NoError(t, store.Migrate(ctx))

	storetest.Run(t, func(t *testing.T) storetest.Backend {
		return store
	})
}
