package pinboard

import (
	"context"
	"fmt"
	"sync"
)

// DetailState is a snapshot of a DetailLoader.
type DetailState struct {
	ID     string
	Status Status
	Pin    *Pin
	Err    error

	Related       []*Pin
	RelatedStatus Status

	// Authors maps user ids of the poster and commenters to their records.
	// It is only populated with WithAuthors.
	Authors map[string]*User
}

// DetailLoader loads one pin and the pins related to it. Only responses for
// the most recently requested id are applied.
type DetailLoader struct {
	store ContentStore
	opts  options

	mu    sync.Mutex
	guard keyGuard[string]
	state DetailState
}

// NewDetailLoader creates a DetailLoader over store.
func NewDetailLoader(store ContentStore, opts ...Option) (*DetailLoader, error) {
	if store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	return &DetailLoader{
		store: store,
		opts:  buildOptions(opts),
		state: DetailState{Status: StatusIdle, RelatedStatus: StatusIdle},
	}, nil
}

// State returns a snapshot of the current detail.
func (d *DetailLoader) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state
	st.Pin = clonePin(st.Pin)
	st.Related = clonePins(st.Related)
	st.Authors = cloneAuthors(st.Authors)
	return st
}

// LoadDetail makes id the current key and fetches its pin. A missing pin
// leaves the loader in StatusEmpty and returns nil. Once the pin resolves the
// related set is loaded before LoadDetail returns. A store failure moves the
// loader to StatusFailed and is returned.
func (d *DetailLoader) LoadDetail(ctx context.Context, id string) error {
	d.mu.Lock()
	d.guard.dispatch(id)
	d.state = DetailState{ID: id, Status: StatusLoading, RelatedStatus: StatusIdle}
	d.mu.Unlock()

	docs, err := d.store.Fetch(ctx, NewQuery(TypePin).Eq(FieldID, id).WithLimit(1))

	var pin *Pin
	if err == nil && len(docs) > 0 {
		pin, err = DecodePin(docs[0])
	}

	d.mu.Lock()
	if !d.guard.matches(id) {
		d.mu.Unlock()
		d.opts.logger.DebugContext(ctx, "discarding stale pin response", "pin_id", id)
		return nil
	}
	if err != nil {
		d.state.Status = StatusFailed
		d.state.Err = err
		d.mu.Unlock()
		d.opts.logger.WarnContext(ctx, "failed to load pin", "pin_id", id, "err", err)
		return fmt.Errorf("load pin %s: %w", id, err)
	}
	if pin == nil {
		d.state.Status = StatusEmpty
		d.mu.Unlock()
		return nil
	}
	d.state.Status = StatusLoaded
	d.state.Pin = pin
	d.mu.Unlock()

	if d.opts.loadAuthors {
		d.loadAuthors(ctx, pin)
	}
	d.LoadRelated(ctx, clonePin(pin))
	return nil
}

// loadAuthors resolves the users behind pin. Failures leave Authors unset.
func (d *DetailLoader) loadAuthors(ctx context.Context, pin *Pin) {
	authors, err := LoadAuthors(ctx, d.store, AuthorIDs(pin))
	if err != nil {
		d.opts.logger.WarnContext(ctx, "pin authors unavailable", "pin_id", pin.ID, "err", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.guard.matches(pin.ID) {
		d.opts.logger.DebugContext(ctx, "discarding stale authors response", "pin_id", pin.ID)
		return
	}
	d.state.Authors = authors
}

// LoadRelated fetches pins that share pin's category, or its author when it
// has no category. It only runs while pin is the resolved current detail.
// Store failures resolve to an empty set. The returned slice is nil when the
// load did not run or its response went stale.
func (d *DetailLoader) LoadRelated(ctx context.Context, pin *Pin) []*Pin {
	if pin == nil {
		return nil
	}

	d.mu.Lock()
	if !d.guard.matches(pin.ID) || d.state.Pin == nil || d.state.Pin.ID != pin.ID {
		d.mu.Unlock()
		return nil
	}
	d.state.RelatedStatus = StatusLoading
	d.state.Related = nil
	d.mu.Unlock()

	related, err := d.fetchRelated(ctx, pin)
	if err != nil {
		d.opts.logger.WarnContext(ctx, "related pins unavailable", "pin_id", pin.ID, "err", err)
		related = []*Pin{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.guard.matches(pin.ID) {
		d.opts.logger.DebugContext(ctx, "discarding stale related response", "pin_id", pin.ID)
		return nil
	}
	d.state.Related = related
	if len(related) == 0 {
		d.state.RelatedStatus = StatusEmpty
	} else {
		d.state.RelatedStatus = StatusLoaded
	}
	return clonePins(related)
}

// RelatedQuery builds the related-pins query for pin.
func RelatedQuery(pin *Pin, limit int) Query {
	q := NewQuery(TypePin)
	switch {
	case pin.Category != "":
		q = q.Eq(FieldCategory, pin.Category)
	case pin.AuthorID != "":
		q = q.Eq(FieldAuthorID, pin.AuthorID)
	}
	return q.Ne(FieldID, pin.ID).WithLimit(limit)
}

func (d *DetailLoader) fetchRelated(ctx context.Context, pin *Pin) ([]*Pin, error) {
	docs, err := d.store.Fetch(ctx, RelatedQuery(pin, d.opts.relatedLimit))
	if err != nil {
		return nil, err
	}

	related := make([]*Pin, 0, len(docs))
	for _, doc := range docs {
		if doc.ID() == pin.ID {
			continue
		}
		p, err := DecodePin(doc)
		if err != nil {
			d.opts.logger.WarnContext(ctx, "skipping undecodable pin", "pin_id", doc.ID(), "err", err)
			continue
		}
		related = append(related, p)
	}
	return related, nil
}

func clonePins(pins []*Pin) []*Pin {
	if pins == nil {
		return nil
	}
	out := make([]*Pin, len(pins))
	for i, p := range pins {
		out[i] = clonePin(p)
	}
	return out
}
