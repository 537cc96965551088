package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/tendant/simple-pins/pkg/pinboard/assets"
)

type object struct {
	data        []byte
	contentType string
}

// Backend is an in-memory implementation of the assets.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{objects: make(map[string]object)}
}

// Upload uploads content directly
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = object{data: data, contentType: contentType}
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, "", assets.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}

// URL is not supported; objects are served through the gateway.
func (b *Backend) URL(ctx context.Context, key string) (string, error) {
	return "", assets.ErrNoPublicURL
}

// Len returns the number of stored objects.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
