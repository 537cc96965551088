package pinboard

import (
	"context"
	"io"
)

// ContentStore is the document store the orchestrators read from and write to.
// Implementations must be safe for concurrent use and apply each Commit as a
// single atomic document-level operation.
type ContentStore interface {
	// Fetch returns the documents matching q, newest first.
	Fetch(ctx context.Context, q Query) ([]Document, error)
	// Create persists doc and returns its id. A missing _id is assigned by
	// the store, as is _createdAt.
	Create(ctx context.Context, doc Document) (string, error)
	// Commit applies m atomically. It returns ErrNotFound when the document
	// does not exist.
	Commit(ctx context.Context, m Mutation) error
}

// AssetGateway accepts binary uploads and returns a reference to the stored
// asset.
type AssetGateway interface {
	Upload(ctx context.Context, r io.Reader, contentType, filename string) (*AssetReference, error)
}

// Navigator moves the client to another location after a successful action.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) {
	f(path)
}

// SessionProvider resolves the user of the current session. The boolean is
// false when nobody is signed in.
type SessionProvider interface {
	Session(ctx context.Context) (Session, bool)
}

// EventSink receives domain events after successful writes. Errors returned by
// a sink are logged and never fail the operation.
type EventSink interface {
	AssetUploaded(ctx context.Context, ref *AssetReference) error
	PinCreated(ctx context.Context, pin *Pin) error
	CommentAppended(ctx context.Context, pinID string, comment *Comment) error
	PinSaved(ctx context.Context, pinID, userID string) error
}
