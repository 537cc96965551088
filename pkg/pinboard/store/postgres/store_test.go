package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/store/postgres"
	"github.com/tendant/simple-pins/pkg/pinboard/store/storetest"
)

// newTestStore connects to TEST_DATABASE_URL or skips.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")

	store := postgres.NewWithPool(pool, "pinboard_test")
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStoreContract(t *testing.T) {
	store := newTestStore(t)
	storetest.Run(t, func(t *testing.T) pinboard.ContentStore {
		return store
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Migrate(context.Background()))
}
