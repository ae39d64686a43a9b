package mongo_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/khata-app/khata/internal/store/mongo"
	"github.com/khata-app/khata/internal/store/storetest"
)

func TestRepositoryContract(t *testing.T) {
	uri := os.Getenv("KHATA_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("KHATA_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := driver.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	db := client.Database("khata_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	store := mongo.New(db)
	require.NoError(t, store.Migrate(ctx))

	storetest.Run(t, func(t *testing.T) storetest.Backend {
		return store
	})
}
