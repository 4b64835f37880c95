package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/photoblog/photoblog/pkg/logging"
)

// LocalStore keeps images in a directory served under baseURL.
type LocalStore struct {
	dir     string
	baseURL string
	logger  *zap.Logger
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logging.WithComponent("storage-local"),
	}, nil
}

// Dir is the directory images are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes r to the directory. A partially written file is removed.
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if err := checkName(name); err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("write image file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close image file: %w", err)
	}
	s.logger.Debug("Image saved", zap.String("path", path))
	return nil
}

// Delete removes the image. A missing file is not an error.
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image file: %w", err)
	}
	return nil
}

// URL is baseURL/name.
func (s *LocalStore) URL(ctx context.Context, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return s.baseURL + "/" + name, nil
}
