// Package storage keeps post images. Backends share one contract: deleting
// an absent image succeeds.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/photoblog/photoblog/pkg/config"
)

// ErrUnsupportedImage is returned for uploads with an unknown extension.
var ErrUnsupportedImage = errors.New("unsupported image type")

// ErrInvalidName is returned for names that could escape the store.
var ErrInvalidName = errors.New("invalid image name")

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Store saves, removes and addresses images by name.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, name string) error
	URL(ctx context.Context, name string) (string, error)
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStore(cfg.UploadsDir, cfg.BaseURL)
	case "minio":
		return NewMinioStore(ctx, cfg)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewImageName returns a fresh random name keeping the extension of the
// uploaded file, lower-cased.
func NewImageName(original string) (string, error) {
	ext := strings.ToLower(filepath.Ext(original))
	if _, ok := imageExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}
	return uuid.NewString() + ext, nil
}

// ContentType guesses the MIME type of an image name from its extension.
func ContentType(name string) string {
	if ct, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
