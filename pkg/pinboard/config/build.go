package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/assets"
	"github.com/tendant/simple-pins/pkg/pinboard/objectkey"
	fsstorage "github.com/tendant/simple-pins/pkg/pinboard/storage/fs"
	memorystorage "github.com/tendant/simple-pins/pkg/pinboard/storage/memory"
	s3storage "github.com/tendant/simple-pins/pkg/pinboard/storage/s3"
	memorystore "github.com/tendant/simple-pins/pkg/pinboard/store/memory"
	mongostore "github.com/tendant/simple-pins/pkg/pinboard/store/mongodb"
	pgstore "github.com/tendant/simple-pins/pkg/pinboard/store/postgres"
	sqlitestore "github.com/tendant/simple-pins/pkg/pinboard/store/sqlite"
)

// BuildStore opens the configured content store and prepares its schema.
// The returned function releases the underlying connections.
func (c *ServerConfig) BuildStore(ctx context.Context) (pinboard.ContentStore, func(), error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return memorystore.New(), func() {}, nil

	case DatabasePostgres:
		pool, err := NewPostgresPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := pgstore.NewWithPool(pool, c.DBSchema)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres store: %w", err)
		}
		return store, pool.Close, nil

	case DatabaseMongo:
		store, err := mongostore.Connect(ctx, c.DatabaseURL, c.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		closeStore := func() {
			if err := store.Close(context.Background()); err != nil {
				slog.Warn("Failed to close mongo store", "err", err)
			}
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		return store, closeStore, nil

	case DatabaseSQLite:
		store, err := sqlitestore.Open(c.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("Failed to close sqlite store", "err", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
}

// NewPostgresPool creates a pool for databaseURL and verifies connectivity.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// BuildBlobStore creates the configured blob backend.
func (c *ServerConfig) BuildBlobStore(ctx context.Context) (assets.BlobStore, error) {
	switch c.Storage.Type {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFS:
		return fsstorage.New(fsstorage.Config{
			BaseDir:   c.Storage.BaseDir,
			URLPrefix: c.Storage.URLPrefix,
		})

	case StorageS3:
		s3 := c.Storage.S3
		return s3storage.New(ctx, s3storage.Config{
			Region:                 s3.Region,
			Bucket:                 s3.Bucket,
			AccessKeyID:            s3.AccessKeyID,
			SecretAccessKey:        s3.SecretAccessKey,
			Endpoint:               s3.Endpoint,
			UsePathStyle:           s3.UsePathStyle,
			PresignDuration:        s3.PresignDuration,
			PublicBaseURL:          s3.PublicBaseURL,
			CreateBucketIfNotExist: s3.CreateBucketIfNotExist,
		})
	}
	return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
}

// BuildGateway creates the asset gateway over the configured blob backend.
func (c *ServerConfig) BuildGateway(ctx context.Context, logger *slog.Logger) (*assets.Gateway, error) {
	blobs, err := c.BuildBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}
	keys, err := objectkey.ByName(c.ObjectKeyGenerator)
	if err != nil {
		return nil, err
	}
	return assets.NewGateway(blobs,
		assets.WithKeyGenerator(keys),
		assets.WithMaxBytes(c.MaxAssetBytes),
		assets.WithURLPrefix(c.AssetURLPrefix),
		assets.WithLogger(logger),
	)
}
