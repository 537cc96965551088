package pinboard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type pendingComment struct {
	pinID string
	text  string
	id    string
}

// CommentMutator appends comments to a pin's thread and reloads the pin after
// each successful append. Overlapping calls are not serialized; callers use
// Pending to hold back a second submission.
type CommentMutator struct {
	store ContentStore
	opts  options

	mu      sync.Mutex
	text    string
	pending bool
	retry   *pendingComment
	guard   keyGuard[string]
	pin     *Pin
}

// NewCommentMutator creates a CommentMutator over store.
func NewCommentMutator(store ContentStore, opts ...Option) (*CommentMutator, error) {
	if store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	return &CommentMutator{store: store, opts: buildOptions(opts)}, nil
}

// SetText replaces the unsent comment text.
func (m *CommentMutator) SetText(text string) {
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
}

// Text returns the unsent comment text.
func (m *CommentMutator) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Pending reports whether an append is in flight.
func (m *CommentMutator) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Pin returns the last reloaded pin, or nil.
func (m *CommentMutator) Pin() *Pin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePin(m.pin)
}

// Load fetches pinID and makes it the mutator's current pin.
func (m *CommentMutator) Load(ctx context.Context, pinID string) (*Pin, error) {
	m.mu.Lock()
	m.guard.dispatch(pinID)
	m.mu.Unlock()
	return m.reload(ctx, pinID)
}

func (m *CommentMutator) reload(ctx context.Context, pinID string) (*Pin, error) {
	docs, err := m.store.Fetch(ctx, NewQuery(TypePin).Eq(FieldID, pinID).WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("pin %s: %w", pinID, ErrNotFound)
	}
	pin, err := DecodePin(docs[0])
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.guard.matches(pinID) {
		m.pin = pin
	}
	m.mu.Unlock()
	return clonePin(pin), nil
}

// AppendComment adds text to the end of pinID's thread. Blank text is a
// no-op. The comment id is generated before the write; retrying a failed
// append with the same pin and text reuses it, so the retry cannot duplicate
// an entry the store already accepted. When authorID is empty the session
// user is the author.
func (m *CommentMutator) AppendComment(ctx context.Context, pinID, text, authorID string) (*Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if authorID == "" && m.opts.sessions != nil {
		if sess, ok := m.opts.sessions.Session(ctx); ok {
			authorID = sess.UserID
		}
	}
	if authorID == "" {
		return nil, ErrUnauthenticated
	}

	m.mu.Lock()
	m.text = text
	id := uuid.NewString()
	if m.retry != nil && m.retry.pinID == pinID && m.retry.text == text {
		id = m.retry.id
	}
	m.retry = &pendingComment{pinID: pinID, text: text, id: id}
	m.pending = true
	m.guard.dispatch(pinID)
	m.mu.Unlock()

	comment := &Comment{ID: id, Text: text, AuthorID: authorID}
	err := NewPatch(m.store, pinID).
		SetIfMissing(FieldComments, []interface{}{}).
		AppendUnique(FieldComments, "id", comment).
		Commit(ctx)

	m.mu.Lock()
	m.pending = false
	if err != nil {
		m.mu.Unlock()
		err = fmt.Errorf("%w: %w", ErrAppendFailed, &WriteError{Op: "append", ID: pinID, Err: err})
		m.opts.logger.WarnContext(ctx, "failed to append comment", "pin_id", pinID, "comment_id", id, "err", err)
		return nil, err
	}
	if m.text == text {
		m.text = ""
	}
	if m.retry != nil && m.retry.id == id {
		m.retry = nil
	}
	m.mu.Unlock()

	emit(ctx, m.opts.logger, "comment_appended", func() error {
		return m.opts.events.CommentAppended(ctx, pinID, comment)
	})

	if _, err := m.reload(ctx, pinID); err != nil {
		m.opts.logger.WarnContext(ctx, "failed to reload pin after comment", "pin_id", pinID, "err", err)
	}
	return comment, nil
}
