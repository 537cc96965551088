package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-pins/pkg/pinboard"
)

func TestBuildWhereClause(t *testing.T) {
	q := pinboard.NewQuery(pinboard.TypePin).
		Eq(pinboard.FieldCategory, "nature").
		Ne(pinboard.FieldID, "p1").
		Contains(pinboard.FieldSavedBy, "u1")

	where, args := buildWhereClause(q)

	assert.Equal(t,
		"doc_type = $1 AND body ->> $2::text = $3::text AND (body ->> $4::text) IS DISTINCT FROM $5::text AND body -> $6::text @> jsonb_build_array($7::text)",
		where)
	assert.Equal(t, []interface{}{"pin", "category", "nature", "_id", "p1", "savedBy", "u1"}, args)
}

func TestNew_QuotesSchema(t *testing.T) {
	s := New(nil, "pin board")
	assert.Equal(t, `"pin board"."documents"`, s.table)

	s = New(nil, "")
	assert.Equal(t, `"documents"`, s.table)
}
