package pinboard

import (
	"fmt"
	"regexp"
)

// Op is a filter operator.
type Op string

// Filter operators.
const (
	// OpEq matches documents whose field equals the value
	OpEq Op = "eq"
	// OpNe matches documents whose field is absent or differs from the value
	OpNe Op = "ne"
	// OpContains matches documents whose list field has the value as an element
	OpContains Op = "contains"
)

// Filter is one predicate over a top-level document field.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// Query is a declarative predicate over a document type and field filters.
// Result order is store-defined; the bundled stores return newest first.
type Query struct {
	Type    string
	Filters []Filter
	Limit   int
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewQuery starts a query over documents of the given type.
func NewQuery(typ string) Query {
	return Query{Type: typ}
}

func (q Query) with(f Filter) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, f)
	return q
}

// Eq adds an equality filter.
func (q Query) Eq(field, value string) Query {
	return q.with(Filter{Field: field, Op: OpEq, Value: value})
}

// Ne adds an inequality filter.
func (q Query) Ne(field, value string) Query {
	return q.with(Filter{Field: field, Op: OpNe, Value: value})
}

// Contains adds a list-membership filter.
func (q Query) Contains(field, value string) Query {
	return q.with(Filter{Field: field, Op: OpContains, Value: value})
}

// WithLimit caps the number of results; zero means unlimited.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Validate rejects queries whose field names or operators cannot be
// translated safely by every store.
func (q Query) Validate() error {
	if q.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("%w: field %q", ErrInvalidQuery, f.Field)
		}
		switch f.Op {
		case OpEq, OpNe, OpContains:
		default:
			return fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
		}
	}
	return nil
}

// Matches evaluates the query against a document in memory.
func (q Query) Matches(doc Document) bool {
	if doc.Type() != q.Type {
		return false
	}
	for _, f := range q.Filters {
		if !f.matches(doc) {
			return false
		}
	}
	return true
}

func (f Filter) matches(doc Document) bool {
	v, ok := doc[f.Field]
	switch f.Op {
	case OpEq:
		s, isString := v.(string)
		return ok && isString && s == f.Value
	case OpNe:
		s, isString := v.(string)
		return !ok || !isString || s != f.Value
	case OpContains:
		list, isList := v.([]interface{})
		if !isList {
			return false
		}
		for _, el := range list {
			if s, isString := el.(string); isString && s == f.Value {
				return true
			}
		}
	}
	return false
}
