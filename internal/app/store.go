package app

import (
	"context"
	"fmt"
	"log/slog"

	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/khata-app/khata/internal/auth"
	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/platform/db"
	"github.com/khata-app/khata/internal/store/memory"
	"github.com/khata-app/khata/internal/store/mongo"
	"github.com/khata-app/khata/internal/store/postgres"
	"github.com/khata-app/khata/internal/store/sqlite"
)

// Store is the persistence backend selected by STORE_DRIVER.
type Store interface {
	khata.Repository
	auth.Repository
}

// OpenedStore bundles a backend with its lifecycle hooks.
type OpenedStore struct {
	Store Store
	Ping  HealthCheck
	Close func(ctx context.Context) error
}

// OpenStore connects the configured backend and applies its schema.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*OpenedStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.StoreDriver {
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("app: migrate postgres: %w", err)
		}
		logger.Info("store ready", slog.String("driver", DriverPostgres))
		return &OpenedStore{
			Store: store,
			Ping:  pool.Ping,
			Close: func(context.Context) error { pool.Close(); return nil },
		}, nil
	case DriverMongo:
		client, err := driver.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("app: connect mongo: %w", err)
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("app: ping mongo: %w", err)
		}
		store := mongo.New(client.Database(cfg.MongoDatabase))
		if err := store.Migrate(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("app: migrate mongo: %w", err)
		}
		logger.Info("store ready", slog.String("driver", DriverMongo), slog.String("database", cfg.MongoDatabase))
		return &OpenedStore{
			Store: store,
			Ping:  func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
			Close: client.Disconnect,
		}, nil
	case DriverSQLite:
		store, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("store ready", slog.String("driver", DriverSQLite), slog.String("path", cfg.SQLitePath))
		return &OpenedStore{
			Store: store,
			Ping:  store.Ping,
			Close: func(context.Context) error { return store.Close() },
		}, nil
	case DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &OpenedStore{
			Store: memory.New(),
			Close: func(context.Context) error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
}
