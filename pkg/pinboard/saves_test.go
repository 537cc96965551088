package pinboard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-pins/pkg/pinboard"
)

func TestSave_FeedsSavedCollection(t *testing.T) {
	store := newRecordingStore()
	id := seedPin(store, &pinboard.Pin{Title: "p", AuthorID: "u2"})
	s, err := pinboard.NewSaveMutator(store)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, id, "u1"))
	require.NoError(t, s.Save(ctx, id, "u1"))

	p, err := pinboard.NewProfileAggregator(store)
	require.NoError(t, err)
	require.NoError(t, p.LoadCollection(ctx, "u1", pinboard.ModeSaved))
	pins := p.State().Pins
	require.Len(t, pins, 1)
	assert.Equal(t, []string{"u1"}, pins[0].SavedBy)
}

func TestSave_Errors(t *testing.T) {
	store := newRecordingStore()
	s, err := pinboard.NewSaveMutator(store)
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, s.Save(ctx, "p1", ""), pinboard.ErrUnauthenticated)
	assert.Equal(t, 0, store.commitCount())

	err = s.Save(ctx, "missing", "u1")
	assert.ErrorIs(t, err, pinboard.ErrSaveFailed)
	assert.ErrorIs(t, err, pinboard.ErrNotFound)
}

func TestSave_SessionUser(t *testing.T) {
	store := newRecordingStore()
	id := seedPin(store, &pinboard.Pin{Title: "p"})
	s, err := pinboard.NewSaveMutator(store, pinboard.WithSession("u5"))
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), id, ""))

	docs, err := store.Fetch(context.Background(), pinboard.NewQuery(pinboard.TypePin).Contains(pinboard.FieldSavedBy, "u5"))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
