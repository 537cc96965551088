package pinboard

import (
	"context"
	"fmt"
)

// SaveMutator adds pins to a user's saved collection.
type SaveMutator struct {
	store ContentStore
	opts  options
}

// NewSaveMutator creates a SaveMutator over store.
func NewSaveMutator(store ContentStore, opts ...Option) (*SaveMutator, error) {
	if store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	return &SaveMutator{store: store, opts: buildOptions(opts)}, nil
}

// Save records userID in pinID's savedBy list. Saving twice is a no-op. When
// userID is empty the session user is used.
func (s *SaveMutator) Save(ctx context.Context, pinID, userID string) error {
	if userID == "" && s.opts.sessions != nil {
		if sess, ok := s.opts.sessions.Session(ctx); ok {
			userID = sess.UserID
		}
	}
	if userID == "" {
		return ErrUnauthenticated
	}

	err := NewPatch(s.store, pinID).
		SetIfMissing(FieldSavedBy, []interface{}{}).
		AppendUnique(FieldSavedBy, "", userID).
		Commit(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSaveFailed, &WriteError{Op: "save", ID: pinID, Err: err})
		s.opts.logger.WarnContext(ctx, "failed to save pin", "pin_id", pinID, "user_id", userID, "err", err)
		return err
	}

	emit(ctx, s.opts.logger, "pin_saved", func() error {
		return s.opts.events.PinSaved(ctx, pinID, userID)
	})
	return nil
}
