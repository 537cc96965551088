// Package storetest holds the behavior every pinboard.ContentStore
// implementation must share. Store packages call Run from their tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-pins/pkg/pinboard"
)

// Factory returns an empty-enough store for one subtest. Stores backed by a
// shared database may return the same instance; every subtest writes under
// its own document type.
type Factory func(t *testing.T) pinboard.ContentStore

// Run exercises newStore against the ContentStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAssignsIDAndTimestamp", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		typ := freshType()

		id, err := store.Create(ctx, pinboard.Document{pinboard.FieldType: typ, "title": "Sunset"})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		docs, err := store.Fetch(ctx, pinboard.NewQuery(typ).Eq(pinboard.FieldID, id))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, id, docs[0].ID())
		assert.Equal(t, "Sunset", docs[0]["title"])
		assert.NotEmpty(t, docs[0][pinboard.FieldCreatedAt])
	})

	t.Run("CreateKeepsCallerID", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		typ := freshType()
		id := uuid.NewString()

		got, err := store.Create(ctx, pinboard.Document{pinboard.FieldID: id, pinboard.FieldType: typ})
		require.NoError(t, err)
		assert.Equal(t, id, got)

		_, err = store.Create(ctx, pinboard.Document{pinboard.FieldID: id, pinboard.FieldType: typ})
		assert.Error(t, err)
	})

	t.Run("CreateRequiresType", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Create(context.Background(), pinboard.Document{"title": "x"})
		assert.ErrorIs(t, err, pinboard.ErrInvalidQuery)
	})

	t.Run("FetchFilters", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		typ := freshType()

		a := create(t, store, pinboard.Document{pinboard.FieldType: typ, "category": "nature", "savedBy": []interface{}{"u1", "u2"}})
		b := create(t, store, pinboard.Document{pinboard.FieldType: typ, "category": "nature"})
		c := create(t, store, pinboard.Document{pinboard.FieldType: typ, "category": "city", "savedBy": []interface{}{"u2"}})
		create(t, store, pinboard.Document{pinboard.FieldType: freshType(), "category": "nature"})

		tests := []struct {
			name  string
			query pinboard.Query
			want  []string
		}{
			{"type only", pinboard.NewQuery(typ), []string{a, b, c}},
			{"eq", pinboard.NewQuery(typ).Eq("category", "nature"), []string{a, b}},
			{"eq and ne", pinboard.NewQuery(typ).Eq("category", "nature").Ne(pinboard.FieldID, a), []string{b}},
			{"ne on missing field", pinboard.NewQuery(typ).Ne("missing", "x"), []string{a, b, c}},
			{"contains", pinboard.NewQuery(typ).Contains("savedBy", "u2"), []string{a, c}},
			{"contains none", pinboard.NewQuery(typ).Contains("savedBy", "u3"), nil},
			{"contains on scalar", pinboard.NewQuery(typ).Contains("category", "nature"), nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				docs, err := store.Fetch(ctx, tt.query)
				require.NoError(t, err)
				assert.ElementsMatch(t, tt.want, ids(docs))
			})
		}
	})

	t.Run("FetchNewestFirstWithLimit", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		typ := freshType()
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		var want []string
		for i := 0; i < 4; i++ {
			id := create(t, store, pinboard.Document{
				pinboard.FieldType:      typ,
				pinboard.FieldCreatedAt: pinboard.FormatTimestamp(base.Add(time.Duration(i) * time.Minute)),
			})
			want = append([]string{id}, want...)
		}

		docs, err := store.Fetch(ctx, pinboard.NewQuery(typ))
		require.NoError(t, err)
		assert.Equal(t, want, ids(docs))

		docs, err = store.Fetch(ctx, pinboard.NewQuery(typ).WithLimit(2))
		require.NoError(t, err)
		assert.Equal(t, want[:2], ids(docs))
	})

	t.Run("FetchRejectsInvalidQuery", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Fetch(context.Background(), pinboard.NewQuery(freshType()).Eq("bad field'", "x"))
		assert.ErrorIs(t, err, pinboard.ErrInvalidQuery)
	})

	t.Run("CommitEnsureAndAppend", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		typ := freshType()
		id := create(t, store, pinboard.Document{pinboard.FieldType: typ, "title": "t"})

		for _, text := range []string{"first", "second"} {
			err := pinboard.NewPatch(store, id).
				SetIfMissing("comments", []interface{}{}).
				Append("comments", map[string]interface{}{"id": uuid.NewString(), "text": text}).
				Commit(ctx)
			require.NoError(t, err)
		}

		doc := fetchOne(t, store, typ, id)
		comments, ok := doc["comments"].([]interface{})
		require.True(t, ok)
		require.Len(t, comments, 2)
		assert.Equal(t, "first", comments[0].(map[string]interface{})["text"])
		assert.Equal(t, "second", comments[1].(map[string]interface{})["text"])
		assert.Equal(t, "t", doc["title"])
	})

	t.Run("CommitEnsureKeepsExisting", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		typ := freshType()
		id := create(t, store, pinboard.Document{pinboard.FieldType: typ, "tags": []interface{}{"a"}})

		err := pinboard.NewPatch(store, id).SetIfMissing("tags", []interface{}{}).SetIfMissing("note", "n").Commit(ctx)
		require.NoError(t, err)

		doc := fetchOne(t, store, typ, id)
		assert.Equal(t, []interface{}{"a"}, doc["tags"])
		assert.Equal(t, "n", doc["note"])
	})

	t.Run("CommitAppendUnique", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		typ := freshType()
		id := create(t, store, pinboard.Document{pinboard.FieldType: typ})
		entry := map[string]interface{}{"id": "c1", "text": "nice"}

		for i := 0; i < 2; i++ {
			require.NoError(t, pinboard.NewPatch(store, id).AppendUnique("comments", "id", entry).Commit(ctx))
			require.NoError(t, pinboard.NewPatch(store, id).AppendUnique("savedBy", "", "u1").Commit(ctx))
		}
		require.NoError(t, pinboard.NewPatch(store, id).AppendUnique("savedBy", "", "u2").Commit(ctx))

		doc := fetchOne(t, store, typ, id)
		assert.Len(t, doc["comments"], 1)
		assert.Equal(t, []interface{}{"u1", "u2"}, doc["savedBy"])
	})

	t.Run("CommitMissingDocument", func(t *testing.T) {
		store := newStore(t)
		err := pinboard.NewPatch(store, uuid.NewString()).Append("comments", "x").Commit(context.Background())
		assert.True(t, errors.Is(err, pinboard.ErrNotFound), "got %v", err)
	})

	t.Run("ConcurrentAppendsAllLand", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		typ := freshType()
		id := create(t, store, pinboard.Document{pinboard.FieldType: typ})

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- pinboard.NewPatch(store, id).
					SetIfMissing("comments", []interface{}{}).
					Append("comments", map[string]interface{}{"id": fmt.Sprintf("c%d", i)}).
					Commit(ctx)
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		doc := fetchOne(t, store, typ, id)
		assert.Len(t, doc["comments"], writers)
	})
}

func freshType() string {
	return "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func create(t *testing.T, store pinboard.ContentStore, doc pinboard.Document) string {
	t.Helper()
	id, err := store.Create(context.Background(), doc)
	require.NoError(t, err)
	return id
}

func fetchOne(t *testing.T, store pinboard.ContentStore, typ, id string) pinboard.Document {
	t.Helper()
	docs, err := store.Fetch(context.Background(), pinboard.NewQuery(typ).Eq(pinboard.FieldID, id))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return docs[0]
}

func ids(docs []pinboard.Document) []string {
	var out []string
	for _, d := range docs {
		out = append(out, d.ID())
	}
	return out
}
