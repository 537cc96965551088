package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/objectkey"
)

// DefaultMaxBytes is the largest accepted upload.
const DefaultMaxBytes = 20 << 20

// DefaultURLPrefix is where assets are served from when the backend has no
// public URL of its own.
const DefaultURLPrefix = "/assets"

// Gateway implements pinboard.AssetGateway over a BlobStore.
type Gateway struct {
	blobs     BlobStore
	keys      objectkey.Generator
	maxBytes  int64
	urlPrefix string
	logger    *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithKeyGenerator sets the object key strategy.
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(g *Gateway) {
		g.keys = gen
	}
}

// WithMaxBytes sets the upload size limit.
func WithMaxBytes(n int64) Option {
	return func(g *Gateway) {
		g.maxBytes = n
	}
}

// WithURLPrefix sets the prefix used for backends without public URLs.
func WithURLPrefix(prefix string) Option {
	return func(g *Gateway) {
		g.urlPrefix = strings.TrimRight(prefix, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway creates a gateway storing into blobs.
func NewGateway(blobs BlobStore, opts ...Option) (*Gateway, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	g := &Gateway{
		blobs:     blobs,
		keys:      objectkey.NewRecommendedGenerator(),
		maxBytes:  DefaultMaxBytes,
		urlPrefix: DefaultURLPrefix,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.maxBytes <= 0 {
		g.maxBytes = DefaultMaxBytes
	}
	return g, nil
}

// Upload reads r fully (up to the size limit), stores it and returns a
// reference whose ID is the object key.
func (g *Gateway) Upload(ctx context.Context, r io.Reader, contentType, filename string) (*pinboard.AssetReference, error) {
	data, err := io.ReadAll(io.LimitReader(r, g.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > g.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", pinboard.ErrAssetTooLarge, g.maxBytes)
	}

	key := g.keys.GenerateKey(uuid.New(), &objectkey.KeyMetadata{
		FileName:    filename,
		ContentType: contentType,
		OwnerID:     ownerFromContext(ctx),
	})
	if !objectkey.IsSafeKey(key) {
		return nil, fmt.Errorf("generated unsafe object key %q", key)
	}

	if err := g.blobs.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return nil, err
	}

	url, err := g.url(ctx, key)
	if err != nil {
		return nil, err
	}

	g.logger.DebugContext(ctx, "asset stored", "key", key, "bytes", len(data), "content_type", contentType)
	return &pinboard.AssetReference{ID: key, URL: url, ContentType: contentType}, nil
}

// Resolve looks up an asset stored earlier under key and rebuilds its
// reference from the backend. Unknown or unsafe keys return
// ErrObjectNotFound; stored objects outside the image allow-list return
// pinboard.ErrInvalidAssetType.
func (g *Gateway) Resolve(ctx context.Context, key string) (*pinboard.AssetReference, error) {
	rc, contentType, err := g.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	rc.Close()

	if !pinboard.IsAllowedAssetType(contentType) {
		return nil, fmt.Errorf("%w: %q", pinboard.ErrInvalidAssetType, contentType)
	}
	url, err := g.url(ctx, key)
	if err != nil {
		return nil, err
	}
	return &pinboard.AssetReference{ID: key, URL: url, ContentType: contentType}, nil
}

func (g *Gateway) url(ctx context.Context, key string) (string, error) {
	url, err := g.blobs.URL(ctx, key)
	if errors.Is(err, ErrNoPublicURL) {
		return g.urlPrefix + "/" + key, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve url for %s: %w", key, err)
	}
	return url, nil
}

// Open streams a stored asset.
func (g *Gateway) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if !objectkey.IsSafeKey(key) {
		return nil, "", ErrObjectNotFound
	}
	return g.blobs.Download(ctx, key)
}

// Redirect returns a short-lived direct URL for key when the backend can
// issue one. The boolean is false when the asset must be streamed via Open.
func (g *Gateway) Redirect(ctx context.Context, key string) (string, bool, error) {
	presigner, ok := g.blobs.(Presigner)
	if !ok || !objectkey.IsSafeKey(key) {
		return "", false, nil
	}
	url, err := presigner.PresignedURL(ctx, key)
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

func ownerFromContext(ctx context.Context) string {
	if sess, ok := (pinboard.ContextSessions{}).Session(ctx); ok {
		return sess.UserID
	}
	return ""
}
