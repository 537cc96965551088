package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-pins/pkg/pinboard"
)

type entry struct {
	doc pinboard.Document
	seq uint64
}

// Store implements pinboard.ContentStore using in-memory storage
type Store struct {
	mu   sync.RWMutex
	docs map[string]*entry
	seq  uint64
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp _createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new in-memory store
func New(opts ...Option) *Store {
	s := &Store{
		docs: make(map[string]*entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a copy of doc, assigning _id and _createdAt when absent.
func (s *Store) Create(ctx context.Context, doc pinboard.Document) (string, error) {
	if doc.Type() == "" {
		return "", fmt.Errorf("%w: document type is required", pinboard.ErrInvalidQuery)
	}
	stored, err := pinboard.NormalizeDocument(map[string]interface{}(doc))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := stored.ID()
	if id == "" {
		id = uuid.NewString()
		stored[pinboard.FieldID] = id
	}
	if _, exists := s.docs[id]; exists {
		return "", fmt.Errorf("document %s already exists", id)
	}
	if _, ok := stored[pinboard.FieldCreatedAt].(string); !ok {
		stored[pinboard.FieldCreatedAt] = pinboard.FormatTimestamp(s.now())
	}

	s.seq++
	s.docs[id] = &entry{doc: stored, seq: s.seq}
	return id, nil
}

// Fetch returns copies of the matching documents, newest first.
func (s *Store) Fetch(ctx context.Context, q pinboard.Query) ([]pinboard.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*entry, 0)
	for _, e := range s.docs {
		if q.Matches(e.doc) {
			matched = append(matched, e)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		ci, _ := matched[i].doc[pinboard.FieldCreatedAt].(string)
		cj, _ := matched[j].doc[pinboard.FieldCreatedAt].(string)
		if ci != cj {
			return ci > cj
		}
		return matched[i].seq > matched[j].seq
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	result := make([]pinboard.Document, len(matched))
	for i, e := range matched {
		result[i] = e.doc.Clone()
	}
	return result, nil
}

// Commit applies m to a copy of the document and swaps it in, so a failed
// mutation leaves the stored document untouched.
func (s *Store) Commit(ctx context.Context, m pinboard.Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.docs[m.ID]
	if !exists {
		return fmt.Errorf("document %s: %w", m.ID, pinboard.ErrNotFound)
	}
	updated := e.doc.Clone()
	if err := m.Apply(updated); err != nil {
		return err
	}
	e.doc = updated
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
