package pinboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"sync"
	"time"
)

// allowedAssetTypes is the upload allow-list. image/svg is accepted
// alongside the registered image/svg+xml.
var allowedAssetTypes = map[string]bool{
	"image/png":     true,
	"image/svg":     true,
	"image/svg+xml": true,
	"image/jpeg":    true,
	"image/gif":     true,
	"image/tiff":    true,
}

// IsAllowedAssetType reports whether contentType may be uploaded as a pin
// image. Parameters such as charset are ignored.
func IsAllowedAssetType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return allowedAssetTypes[strings.ToLower(mediaType)]
}

// AssetFile is a file selected for upload.
type AssetFile struct {
	Reader      io.Reader
	ContentType string
	FileName    string
}

// Draft holds the form fields of a pin being created.
type Draft struct {
	Title       string `json:"title"`
	About       string `json:"about"`
	Destination string `json:"destination"`
	Category    string `json:"category"`
}

// CreatorState is a snapshot of the creation form.
type CreatorState struct {
	Draft Draft
	Asset *AssetReference

	// Uploading is set while an upload is in flight.
	Uploading bool
	// WrongType is set when the last selected file was outside the allow-list.
	WrongType bool
	// MissingFields is the transient validation flag. It clears itself after
	// the validation window.
	MissingFields bool
	Missing       []string
	// Saving is set while a create is in flight.
	Saving bool

	Err error
}

// Creator orchestrates asset upload and pin creation for one form.
type Creator struct {
	store   ContentStore
	gateway AssetGateway
	opts    options

	mu            sync.Mutex
	state         CreatorState
	uploads       keyGuard[uint64]
	uploadSeq     uint64
	validationSeq uint64
}

// NewCreator creates a Creator over store and gateway.
func NewCreator(store ContentStore, gateway AssetGateway, opts ...Option) (*Creator, error) {
	if store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("asset gateway is required")
	}
	return &Creator{
		store:   store,
		gateway: gateway,
		opts:    buildOptions(opts),
	}, nil
}

// State returns a snapshot of the form state.
func (c *Creator) State() CreatorState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state
	if st.Asset != nil {
		ref := *st.Asset
		st.Asset = &ref
	}
	st.Missing = append([]string(nil), st.Missing...)
	return st
}

// SubmitAsset uploads file through the gateway and records the resulting
// reference. Files outside the allow-list are rejected before the gateway is
// called.
func (c *Creator) SubmitAsset(ctx context.Context, file AssetFile) (*AssetReference, error) {
	if !IsAllowedAssetType(file.ContentType) {
		c.mu.Lock()
		c.state.WrongType = true
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrInvalidAssetType, file.ContentType)
	}

	c.mu.Lock()
	c.state.WrongType = false
	c.state.Uploading = true
	c.state.Err = nil
	c.uploadSeq++
	seq := c.uploadSeq
	c.uploads.dispatch(seq)
	c.mu.Unlock()

	ref, err := c.gateway.Upload(ctx, file.Reader, file.ContentType, file.FileName)

	c.mu.Lock()
	current := c.uploads.matches(seq)
	if current {
		c.state.Uploading = false
	}
	if err != nil {
		var uploadErr *UploadError
		if !errors.As(err, &uploadErr) {
			err = &UploadError{FileName: file.FileName, ContentType: file.ContentType, Err: err}
		}
		err = fmt.Errorf("%w: %w", ErrUploadFailed, err)
		if current {
			c.state.Err = err
		}
		c.mu.Unlock()
		c.opts.logger.WarnContext(ctx, "asset upload failed", "file", file.FileName, "err", err)
		return nil, err
	}
	if current {
		stored := *ref
		c.state.Asset = &stored
	} else {
		c.opts.logger.DebugContext(ctx, "discarding superseded upload", "asset_id", ref.ID)
	}
	c.mu.Unlock()

	if current {
		emit(ctx, c.opts.logger, "asset_uploaded", func() error {
			return c.opts.events.AssetUploaded(ctx, ref)
		})
	}
	return ref, nil
}

// ClearAsset drops the resolved asset so another file can be chosen. The
// uploaded blob is left in place.
func (c *Creator) ClearAsset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Asset = nil
	c.state.Uploading = false
	c.uploadSeq++
	c.uploads.dispatch(c.uploadSeq)
}

// UseAsset records ref, uploaded earlier through the gateway, as the form's
// asset. Any upload still in flight is superseded. References outside the
// allow-list or without an id and URL are rejected and leave the form
// unchanged.
func (c *Creator) UseAsset(ref AssetReference) error {
	if !IsAllowedAssetType(ref.ContentType) {
		return fmt.Errorf("%w: %q", ErrInvalidAssetType, ref.ContentType)
	}
	if ref.ID == "" || ref.URL == "" {
		return &ValidationError{Missing: []string{"asset"}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Asset = &ref
	c.state.Uploading = false
	c.state.WrongType = false
	c.uploadSeq++
	c.uploads.dispatch(c.uploadSeq)
	return nil
}

// SubmitContent validates the draft together with the uploaded asset and
// creates the pin. The draft is kept on every failure so the user can retry
// without re-entering it. On success the form is reset and the navigator is
// sent home.
func (c *Creator) SubmitContent(ctx context.Context, draft Draft) (*Pin, error) {
	var sess Session
	var signedIn bool
	if c.opts.sessions != nil {
		sess, signedIn = c.opts.sessions.Session(ctx)
	}

	c.mu.Lock()
	c.state.Draft = draft

	if missing := missingFields(draft, c.state.Asset); len(missing) > 0 {
		c.raiseValidation(missing)
		c.mu.Unlock()
		return nil, &ValidationError{Missing: missing}
	}
	if c.state.Saving {
		c.mu.Unlock()
		return nil, ErrCreateInFlight
	}
	if !signedIn || sess.UserID == "" {
		c.mu.Unlock()
		return nil, ErrUnauthenticated
	}

	c.state.Saving = true
	c.state.Err = nil
	asset := c.state.Asset
	pin := &Pin{
		Title:          draft.Title,
		Description:    draft.About,
		DestinationURL: draft.Destination,
		Category:       draft.Category,
		Image:          *c.state.Asset,
		AuthorID:       sess.UserID,
	}
	c.mu.Unlock()

	id, err := c.create(ctx, pin)

	c.mu.Lock()
	c.state.Saving = false
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCreateFailed, &WriteError{Op: "create", Err: err})
		c.state.Err = err
		c.mu.Unlock()
		c.opts.logger.ErrorContext(ctx, "failed to create pin", "title", draft.Title, "err", err)
		return nil, err
	}
	pin.ID = id
	// A draft or asset replaced while the create was in flight belongs to the
	// next submission.
	if c.state.Draft == draft {
		c.state.Draft = Draft{}
	}
	if c.state.Asset == asset {
		c.state.Asset = nil
	}
	c.state.MissingFields = false
	c.state.Missing = nil
	c.validationSeq++
	c.mu.Unlock()

	pin = c.reread(ctx, pin)

	emit(ctx, c.opts.logger, "pin_created", func() error {
		return c.opts.events.PinCreated(ctx, pin)
	})
	c.opts.navigator.Navigate(c.opts.homePath)
	return pin, nil
}

// reread returns the stored copy of a freshly created pin so store-assigned
// fields such as the creation time are populated. The local copy is returned
// when the read fails.
func (c *Creator) reread(ctx context.Context, pin *Pin) *Pin {
	docs, err := c.store.Fetch(ctx, NewQuery(TypePin).Eq(FieldID, pin.ID).WithLimit(1))
	if err == nil && len(docs) > 0 {
		var stored *Pin
		if stored, err = DecodePin(docs[0]); err == nil {
			return stored
		}
	}
	if err != nil {
		c.opts.logger.WarnContext(ctx, "failed to read back created pin", "pin_id", pin.ID, "err", err)
	}
	return pin
}

func (c *Creator) create(ctx context.Context, pin *Pin) (string, error) {
	doc, err := EncodePin(pin)
	if err != nil {
		return "", err
	}
	return c.store.Create(ctx, doc)
}

// raiseValidation sets the missing-fields flag and schedules its reset. Only
// the most recent raise clears the flag. Callers hold c.mu.
func (c *Creator) raiseValidation(missing []string) {
	c.validationSeq++
	seq := c.validationSeq
	c.state.MissingFields = true
	c.state.Missing = missing

	time.AfterFunc(c.opts.validationWindow, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.validationSeq == seq {
			c.state.MissingFields = false
			c.state.Missing = nil
		}
	})
}

func missingFields(d Draft, asset *AssetReference) []string {
	var missing []string
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(d.About) == "" {
		missing = append(missing, "about")
	}
	if strings.TrimSpace(d.Destination) == "" {
		missing = append(missing, "destination")
	}
	if strings.TrimSpace(d.Category) == "" {
		missing = append(missing, "category")
	}
	if asset == nil || asset.URL == "" {
		missing = append(missing, "asset")
	}
	return missing
}
