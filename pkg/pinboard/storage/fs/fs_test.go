package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-pins/pkg/pinboard/assets"
	"github.com/tendant/simple-pins/pkg/pinboard/storage/fs"
)

func TestFSBackend(t *testing.T) {
	dir := t.TempDir()
	backend, err := fs.New(fs.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("UploadAndDownload", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, "images/objects/ab/cd_sunset.png", strings.NewReader("png data"), "image/png"))

		_, err := os.Stat(filepath.Join(dir, "images", "objects", "ab", "cd_sunset.png"))
		require.NoError(t, err)

		rc, contentType, err := backend.Download(ctx, "images/objects/ab/cd_sunset.png")
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "png data", string(data))
		assert.Equal(t, "image/png", contentType)
	})

	t.Run("SniffsWithoutExtension", func(t *testing.T) {
		gif := "GIF89a" + strings.Repeat("\x00", 10)
		require.NoError(t, backend.Upload(ctx, "images/noext", strings.NewReader(gif), "image/gif"))

		rc, contentType, err := backend.Download(ctx, "images/noext")
		require.NoError(t, err)
		defer rc.Close()
		assert.Equal(t, "image/gif", contentType)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, gif, string(data))
	})

	t.Run("RejectsEscapingKeys", func(t *testing.T) {
		assert.Error(t, backend.Upload(ctx, "../outside.png", strings.NewReader("x"), "image/png"))
		_, _, err := backend.Download(ctx, "../outside.png")
		assert.ErrorIs(t, err, assets.ErrObjectNotFound)
	})

	t.Run("MissingObject", func(t *testing.T) {
		_, _, err := backend.Download(ctx, "images/none.png")
		assert.ErrorIs(t, err, assets.ErrObjectNotFound)
	})

	t.Run("URL", func(t *testing.T) {
		_, err := backend.URL(ctx, "images/a.png")
		assert.ErrorIs(t, err, assets.ErrNoPublicURL)

		public, err := fs.New(fs.Config{BaseDir: dir, URLPrefix: "https://cdn.example/"})
		require.NoError(t, err)
		url, err := public.URL(ctx, "images/a.png")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example/images/a.png", url)
	})
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)
}
