package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/assets"
	fsstorage "github.com/tendant/simple-pins/pkg/pinboard/storage/fs"
	memorystorage "github.com/tendant/simple-pins/pkg/pinboard/storage/memory"
	memorystore "github.com/tendant/simple-pins/pkg/pinboard/store/memory"
	sqlitestore "github.com/tendant/simple-pins/pkg/pinboard/store/sqlite"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, DatabaseMemory, cfg.DatabaseType)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, int64(assets.DefaultMaxBytes), cfg.MaxAssetBytes)
	assert.Equal(t, assets.DefaultURLPrefix, cfg.AssetURLPrefix)
	assert.Equal(t, pinboard.DefaultValidationWindow, cfg.ValidationWindow)
	assert.True(t, cfg.EnableEventLogging)
}

func TestLoadSkipsNilOptions(t *testing.T) {
	cfg, err := Load(nil, WithDatabaseURL("sqlite://pins.db"))
	require.NoError(t, err)
	assert.Equal(t, DatabaseSQLite, cfg.DatabaseType)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ServerConfig)
		wantErr string
	}{
		{"missing port", func(c *ServerConfig) { c.Port = "" }, "port is required"},
		{"postgres without url", func(c *ServerConfig) { c.DatabaseType = DatabasePostgres }, "database_url is required"},
		{"mongo without url", func(c *ServerConfig) { c.DatabaseType = DatabaseMongo }, "database_url is required"},
		{"mongo without database", func(c *ServerConfig) {
			c.DatabaseType = DatabaseMongo
			c.DatabaseURL = "mongodb://localhost"
			c.MongoDatabase = ""
		}, "mongo database name"},
		{"sqlite without path", func(c *ServerConfig) { c.DatabaseType = DatabaseSQLite }, "sqlite path"},
		{"unknown database", func(c *ServerConfig) { c.DatabaseType = "oracle" }, "unsupported database type"},
		{"fs without dir", func(c *ServerConfig) { c.Storage.Type = StorageFS }, "base directory"},
		{"s3 without bucket", func(c *ServerConfig) { c.Storage.Type = StorageS3 }, "s3 bucket"},
		{"unknown storage", func(c *ServerConfig) { c.Storage.Type = "gcs" }, "unsupported storage backend"},
		{"zero size limit", func(c *ServerConfig) { c.MaxAssetBytes = 0 }, "max asset bytes"},
		{"zero window", func(c *ServerConfig) { c.ValidationWindow = 0 }, "validation window"},
		{"unknown key generator", func(c *ServerConfig) { c.ObjectKeyGenerator = "random" }, "unknown object key generator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		store, release, err := cfg.BuildStore(ctx)
		require.NoError(t, err)
		defer release()
		assert.IsType(t, &memorystore.Store{}, store)
	})

	t.Run("SQLite", func(t *testing.T) {
		cfg, err := Load(WithDatabaseURL("sqlite://" + t.TempDir() + "/pins.db"))
		require.NoError(t, err)

		store, release, err := cfg.BuildStore(ctx)
		require.NoError(t, err)
		defer release()
		assert.IsType(t, &sqlitestore.Store{}, store)

		id, err := store.Create(ctx, pinboard.Document{pinboard.FieldType: pinboard.TypeUser, "name": "Ada"})
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("PostgresBadURL", func(t *testing.T) {
		cfg, err := Load(WithDatabaseURL("postgres://%zz"))
		require.NoError(t, err)

		_, _, err = cfg.BuildStore(ctx)
		assert.Error(t, err)
	})
}

func TestBuildGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		blobs, err := cfg.BuildBlobStore(ctx)
		require.NoError(t, err)
		assert.IsType(t, &memorystorage.Backend{}, blobs)

		gateway, err := cfg.BuildGateway(ctx, nil)
		require.NoError(t, err)
		ref, err := gateway.Upload(ctx, strings.NewReader("png"), "image/png", "a.png")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref.URL, "/assets/images/objects/"), ref.URL)
	})

	t.Run("Filesystem", func(t *testing.T) {
		cfg, err := Load(WithStorageURL("file://" + t.TempDir()))
		require.NoError(t, err)

		blobs, err := cfg.BuildBlobStore(ctx)
		require.NoError(t, err)
		assert.IsType(t, &fsstorage.Backend{}, blobs)
	})

	t.Run("SizeLimit", func(t *testing.T) {
		cfg, err := Load(func(c *ServerConfig) error {
			c.MaxAssetBytes = 2
			return nil
		})
		require.NoError(t, err)

		gateway, err := cfg.BuildGateway(ctx, nil)
		require.NoError(t, err)
		_, err = gateway.Upload(ctx, strings.NewReader("png"), "image/png", "a.png")
		assert.ErrorIs(t, err, pinboard.ErrAssetTooLarge)
	})
}

func TestOrchestratorOptions(t *testing.T) {
	cfg, err := Load(func(c *ServerConfig) error {
		c.ValidationWindow = 10 * time.Millisecond
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, cfg.OrchestratorOptions(), 2)

	cfg.EnableEventLogging = false
	assert.Len(t, cfg.OrchestratorOptions(), 1)
}
