package pinboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_BuilderDoesNotAlias(t *testing.T) {
	base := NewQuery(TypePin).Eq(FieldCategory, "nature")
	a := base.Ne(FieldID, "a")
	b := base.Ne(FieldID, "b")

	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "a", a.Filters[1].Value)
	assert.Equal(t, "b", b.Filters[1].Value)
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"valid", NewQuery(TypePin).Eq("_id", "x").Contains("savedBy", "u").WithLimit(5), false},
		{"missing type", Query{}, true},
		{"negative limit", NewQuery(TypePin).WithLimit(-1), true},
		{"dotted field", NewQuery(TypePin).Eq("image.url", "x"), true},
		{"injection", NewQuery(TypePin).Eq("a') OR 1=1 --", "x"), true},
		{"unknown op", Query{Type: TypePin, Filters: []Filter{{Field: "a", Op: "gt", Value: "1"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuery_Matches(t *testing.T) {
	doc := Document{
		FieldID:       "p1",
		FieldType:     TypePin,
		FieldCategory: "nature",
		FieldSavedBy:  []interface{}{"u1", "u2"},
	}

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{"type", NewQuery(TypePin), true},
		{"other type", NewQuery(TypeUser), false},
		{"eq", NewQuery(TypePin).Eq(FieldCategory, "nature"), true},
		{"eq mismatch", NewQuery(TypePin).Eq(FieldCategory, "city"), false},
		{"eq missing", NewQuery(TypePin).Eq(FieldAuthorID, "u1"), false},
		{"ne", NewQuery(TypePin).Ne(FieldID, "p2"), true},
		{"ne self", NewQuery(TypePin).Ne(FieldID, "p1"), false},
		{"ne missing", NewQuery(TypePin).Ne(FieldAuthorID, "u1"), true},
		{"contains", NewQuery(TypePin).Contains(FieldSavedBy, "u2"), true},
		{"contains absent", NewQuery(TypePin).Contains(FieldSavedBy, "u3"), false},
		{"contains scalar", NewQuery(TypePin).Contains(FieldCategory, "nature"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Matches(doc))
		})
	}
}
