package pinboard

import (
	"context"
	"fmt"
	"sync"
)

// ProfileState is a snapshot of a ProfileAggregator.
type ProfileState struct {
	UserID     string
	UserStatus Status
	User       *User

	CollectionUserID string
	Mode             CollectionMode
	CollectionStatus Status
	Pins             []*Pin

	Err error
}

type collectionKey struct {
	userID string
	mode   CollectionMode
}

// ProfileAggregator loads a user and one of their two pin collections. The
// user and the collection are keyed independently; a response is applied
// only while its key is still current.
type ProfileAggregator struct {
	store ContentStore
	opts  options

	mu          sync.Mutex
	users       keyGuard[string]
	collections keyGuard[collectionKey]
	state       ProfileState
}

// NewProfileAggregator creates a ProfileAggregator over store.
func NewProfileAggregator(store ContentStore, opts ...Option) (*ProfileAggregator, error) {
	if store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	return &ProfileAggregator{
		store: store,
		opts:  buildOptions(opts),
		state: ProfileState{UserStatus: StatusIdle, CollectionStatus: StatusIdle},
	}, nil
}

// State returns a snapshot of the profile.
func (p *ProfileAggregator) State() ProfileState {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.state
	st.User = cloneUser(st.User)
	st.Pins = clonePins(st.Pins)
	return st
}

// LoadUser fetches the user record for id. A missing user leaves the
// aggregator in StatusEmpty and returns nil.
func (p *ProfileAggregator) LoadUser(ctx context.Context, id string) error {
	p.mu.Lock()
	p.users.dispatch(id)
	p.state.UserID = id
	p.state.UserStatus = StatusLoading
	p.state.User = nil
	p.mu.Unlock()

	docs, err := p.store.Fetch(ctx, NewQuery(TypeUser).Eq(FieldID, id).WithLimit(1))

	var user *User
	if err == nil && len(docs) > 0 {
		user, err = DecodeUser(docs[0])
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.users.matches(id) {
		p.opts.logger.DebugContext(ctx, "discarding stale user response", "user_id", id)
		return nil
	}
	switch {
	case err != nil:
		p.state.UserStatus = StatusFailed
		p.state.Err = err
		return fmt.Errorf("load user %s: %w", id, err)
	case user == nil:
		p.state.UserStatus = StatusEmpty
	default:
		p.state.UserStatus = StatusLoaded
		p.state.User = user
	}
	return nil
}

// CollectionQuery builds the query for one of userID's collections.
func CollectionQuery(userID string, mode CollectionMode) (Query, error) {
	switch mode {
	case ModeAuthored:
		return NewQuery(TypePin).Eq(FieldAuthorID, userID), nil
	case ModeSaved:
		return NewQuery(TypePin).Contains(FieldSavedBy, userID), nil
	}
	return Query{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
}

// LoadCollection makes (userID, mode) the current collection key and fetches
// it. Prior pins are discarded as soon as the key changes. A response whose
// key is no longer current is dropped, so the last dispatched key always
// wins regardless of resolution order.
func (p *ProfileAggregator) LoadCollection(ctx context.Context, userID string, mode CollectionMode) error {
	q, err := CollectionQuery(userID, mode)
	if err != nil {
		return err
	}
	key := collectionKey{userID: userID, mode: mode}

	p.mu.Lock()
	p.collections.dispatch(key)
	p.state.CollectionUserID = userID
	p.state.Mode = mode
	p.state.CollectionStatus = StatusLoading
	p.state.Pins = nil
	p.mu.Unlock()

	docs, err := p.store.Fetch(ctx, q)

	var pins []*Pin
	if err == nil {
		pins = make([]*Pin, 0, len(docs))
		for _, doc := range docs {
			pin, decodeErr := DecodePin(doc)
			if decodeErr != nil {
				p.opts.logger.WarnContext(ctx, "skipping undecodable pin", "pin_id", doc.ID(), "err", decodeErr)
				continue
			}
			pins = append(pins, pin)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.collections.matches(key) {
		p.opts.logger.DebugContext(ctx, "discarding stale collection response", "user_id", userID, "mode", mode)
		return nil
	}
	switch {
	case err != nil:
		p.state.CollectionStatus = StatusFailed
		p.state.Err = err
		return fmt.Errorf("load %s pins of %s: %w", mode, userID, err)
	case len(pins) == 0:
		p.state.CollectionStatus = StatusEmpty
		p.state.Pins = []*Pin{}
	default:
		p.state.CollectionStatus = StatusLoaded
		p.state.Pins = pins
	}
	return nil
}
