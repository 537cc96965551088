package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-pins/pkg/pinboard/assets"
	"github.com/tendant/simple-pins/pkg/pinboard/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, "images/a.png", strings.NewReader("png"), "image/png"))
	require.NoError(t, backend.Upload(ctx, "images/b", strings.NewReader("raw"), ""))

	rc, contentType, err := backend.Download(ctx, "images/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "image/png", contentType)

	_, contentType, err = backend.Download(ctx, "images/b")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", contentType)

	_, _, err = backend.Download(ctx, "missing")
	assert.ErrorIs(t, err, assets.ErrObjectNotFound)

	_, err = backend.URL(ctx, "images/a.png")
	assert.ErrorIs(t, err, assets.ErrNoPublicURL)
	assert.Equal(t, 2, backend.Len())
}
