package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-pins/pkg/pinboard/assets"
	"github.com/tendant/simple-pins/pkg/pinboard/objectkey"
)

// Backend is a filesystem implementation of the assets.BlobStore interface
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // Optional public URL prefix the base directory is served under
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: strings.TrimRight(config.URLPrefix, "/"),
	}, nil
}

func (b *Backend) path(key string) (string, error) {
	if !objectkey.IsSafeKey(key) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(b.baseDir, filepath.FromSlash(key)), nil
}

// Upload writes content to a temporary file and renames it into place, so
// readers never observe a partial object.
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	filePath, err := b.path(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to store file: %w", err)
	}
	return nil
}

// Download opens the file and infers its content type from the extension,
// falling back to sniffing the first bytes.
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	filePath, err := b.path(key)
	if err != nil {
		return nil, "", assets.ErrObjectNotFound
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, "", assets.ErrObjectNotFound
	} else if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		buffer := make([]byte, 512)
		n, _ := file.Read(buffer)
		contentType = http.DetectContentType(buffer[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, "", fmt.Errorf("failed to rewind file: %w", err)
		}
	}
	return file, contentType, nil
}

// URL returns the public URL when a prefix is configured.
func (b *Backend) URL(ctx context.Context, key string) (string, error) {
	if b.urlPrefix == "" {
		return "", assets.ErrNoPublicURL
	}
	return fmt.Sprintf("%s/%s", b.urlPrefix, key), nil
}
