package pinboard_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/store/memory"
)

var errRemote = errors.New("remote unavailable")

// recordingStore wraps the memory store, counting calls and optionally
// failing them.
type recordingStore struct {
	*memory.Store

	mu         sync.Mutex
	creates    []pinboard.Document
	commits    []pinboard.Mutation
	fetches    []pinboard.Query
	failCreate error
	failCommit error
	failFetch  func(q pinboard.Query) error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.New()}
}

func (s *recordingStore) Create(ctx context.Context, doc pinboard.Document) (string, error) {
	s.mu.Lock()
	s.creates = append(s.creates, doc.Clone())
	err := s.failCreate
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.Store.Create(ctx, doc)
}

func (s *recordingStore) Commit(ctx context.Context, m pinboard.Mutation) error {
	s.mu.Lock()
	s.commits = append(s.commits, m)
	err := s.failCommit
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Commit(ctx, m)
}

func (s *recordingStore) Fetch(ctx context.Context, q pinboard.Query) ([]pinboard.Document, error) {
	s.mu.Lock()
	s.fetches = append(s.fetches, q)
	fail := s.failFetch
	s.mu.Unlock()
	if fail != nil {
		if err := fail(q); err != nil {
			return nil, err
		}
	}
	return s.Store.Fetch(ctx, q)
}

func (s *recordingStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creates)
}

func (s *recordingStore) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commits)
}

func (s *recordingStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetches)
}

// gatedStore holds every Fetch until the test releases it, so responses can
// be resolved in any order.
type gatedStore struct {
	*memory.Store

	mu      sync.Mutex
	waiting []*gatedFetch
	arrived chan struct{}
}

type gatedFetch struct {
	query   pinboard.Query
	release chan error
}

func newGatedStore() *gatedStore {
	return &gatedStore{Store: memory.New(), arrived: make(chan struct{}, 64)}
}

func (s *gatedStore) Fetch(ctx context.Context, q pinboard.Query) ([]pinboard.Document, error) {
	f := &gatedFetch{query: q, release: make(chan error, 1)}
	s.mu.Lock()
	s.waiting = append(s.waiting, f)
	s.mu.Unlock()
	s.arrived <- struct{}{}

	if err := <-f.release; err != nil {
		return nil, err
	}
	return s.Store.Fetch(ctx, q)
}

// await waits for the n-th pending fetch (0-based, in arrival order).
func (s *gatedStore) await(n int) *gatedFetch {
	for {
		s.mu.Lock()
		if len(s.waiting) > n {
			f := s.waiting[n]
			s.mu.Unlock()
			return f
		}
		s.mu.Unlock()
		<-s.arrived
	}
}

// fakeGateway records uploads and returns a reference per call.
type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{}
}

func (g *fakeGateway) Upload(ctx context.Context, r io.Reader, contentType, filename string) (*pinboard.AssetReference, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	err := g.err
	block := g.block
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%s-%d", filename, n)
	return &pinboard.AssetReference{ID: id, URL: "https://cdn.example/" + id, ContentType: contentType}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// navRecorder records navigations.
type navRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (n *navRecorder) Navigate(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *navRecorder) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func seedPin(s interface {
	Create(context.Context, pinboard.Document) (string, error)
}, pin *pinboard.Pin) string {
	doc, err := pinboard.EncodePin(pin)
	if err != nil {
		panic(err)
	}
	id, err := s.Create(context.Background(), doc)
	if err != nil {
		panic(err)
	}
	return id
}
