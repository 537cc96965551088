package pinboard

import "context"

// Patch builds a Mutation for one document and commits it through a store.
//
//	err := NewPatch(store, pinID).
//		SetIfMissing("comments", []interface{}{}).
//		Append("comments", entry).
//		Commit(ctx)
type Patch struct {
	store    ContentStore
	mutation Mutation
}

// NewPatch starts a patch on the document with the given id.
func NewPatch(store ContentStore, id string) *Patch {
	return &Patch{store: store, mutation: Mutation{ID: id}}
}

// SetIfMissing initializes path to def when the field is absent.
func (p *Patch) SetIfMissing(path string, def interface{}) *Patch {
	p.mutation.Ensure = append(p.mutation.Ensure, EnsureOp{Path: path, Default: def})
	return p
}

// Append inserts entries at the tail of the list at path.
func (p *Patch) Append(path string, entries ...interface{}) *Patch {
	p.mutation.Appends = append(p.mutation.Appends, AppendOp{Path: path, Entries: entries})
	return p
}

// AppendUnique inserts entries at the tail of the list at path, skipping any
// whose keyField (or value, when keyField is "") is already present.
func (p *Patch) AppendUnique(path, keyField string, entries ...interface{}) *Patch {
	p.mutation.Appends = append(p.mutation.Appends, AppendOp{
		Path:     path,
		Entries:  entries,
		Unique:   true,
		KeyField: keyField,
	})
	return p
}

// Mutation returns the accumulated mutation.
func (p *Patch) Mutation() Mutation {
	return p.mutation
}

// Commit applies the patch atomically.
func (p *Patch) Commit(ctx context.Context) error {
	return p.store.Commit(ctx, p.mutation)
}
