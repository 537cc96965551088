package pinboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutation_Apply(t *testing.T) {
	doc := Document{FieldID: "p1", FieldType: TypePin, "tags": []interface{}{"a"}}

	m := NewPatch(nil, "p1").
		SetIfMissing("comments", []interface{}{}).
		SetIfMissing("tags", []interface{}{}).
		Append("comments", Comment{ID: "c1", Text: "one"}).
		AppendUnique("comments", "id", Comment{ID: "c1", Text: "dup"}, Comment{ID: "c2", Text: "two"}).
		AppendUnique("tags", "", "a", "b").
		Mutation()

	require.NoError(t, m.Apply(doc))

	assert.Equal(t, []interface{}{
		map[string]interface{}{"id": "c1", "text": "one", "authorId": ""},
		map[string]interface{}{"id": "c2", "text": "two", "authorId": ""},
	}, doc["comments"])
	assert.Equal(t, []interface{}{"a", "b"}, doc["tags"])
}

func TestMutation_ApplyRejectsNonList(t *testing.T) {
	doc := Document{"comments": "text"}
	m := Mutation{ID: "p1", Appends: []AppendOp{{Path: "comments", Entries: []interface{}{"x"}}}}
	assert.Error(t, m.Apply(doc))
}

func TestMutation_Validate(t *testing.T) {
	assert.NoError(t, NewPatch(nil, "p1").Append("comments", "x").Mutation().Validate())
	assert.ErrorIs(t, Mutation{}.Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, NewPatch(nil, "p1").Append("_id", "x").Mutation().Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, NewPatch(nil, "p1").SetIfMissing("a.b", 1).Mutation().Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, NewPatch(nil, "p1").AppendUnique("c", "bad key", "x").Mutation().Validate(), ErrInvalidQuery)
}

func TestAppendOp_EntryKeys(t *testing.T) {
	op := AppendOp{Entries: []interface{}{Comment{ID: "c1"}, Comment{ID: "c2"}}, KeyField: "id"}
	assert.Equal(t, []interface{}{"c1", "c2"}, op.EntryKeys())

	op = AppendOp{Entries: []interface{}{"u1"}}
	assert.Equal(t, []interface{}{"u1"}, op.EntryKeys())
}
