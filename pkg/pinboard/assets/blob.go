// Package assets is the asset upload gateway: it stores pin images in a
// BlobStore under generated keys and returns references to them.
package assets

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrObjectNotFound indicates the blob store has no object under the key
	ErrObjectNotFound = errors.New("object not found")

	// ErrNoPublicURL indicates the backend cannot address objects by URL and
	// they must be served through the gateway
	ErrNoPublicURL = errors.New("backend has no public url")
)

// BlobStore is a binary object store backend.
type BlobStore interface {
	// Upload stores the content of r under key.
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error

	// Download opens the object under key and returns its content type.
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)

	// URL returns a URL clients can fetch the object from, or ErrNoPublicURL.
	URL(ctx context.Context, key string) (string, error)
}

// Presigner is implemented by backends that can hand out short-lived direct
// download URLs.
type Presigner interface {
	PresignedURL(ctx context.Context, key string) (string, error)
}
