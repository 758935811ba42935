package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned for keys that would escape the storage root.
var ErrInvalidKey = errors.New("invalid object key")

// LocalClient stores objects as files below a directory that the HTTP server
// exposes under baseURL.
type LocalClient struct {
	dir     string
	baseURL string
}

func NewLocalClient(dir, baseURL string) (*LocalClient, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("local storage directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &LocalClient{dir: abs, baseURL: baseURL}, nil
}

// EnsureBucket creates the storage directory.
func (l *LocalClient) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(l.dir, 0o755)
}

// Put writes the object through a temp file so readers never see a partial file.
func (l *LocalClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	src := r
	if size >= 0 {
		src = io.LimitReader(r, size)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (l *LocalClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := l.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(target)
}

// Delete removes the file. Missing files are not an error.
func (l *LocalClient) Delete(ctx context.Context, key string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Bucket returns the storage directory.
func (l *LocalClient) Bucket() string {
	return l.dir
}

func (l *LocalClient) URL(key string) string {
	return joinURL(l.baseURL, key)
}

func (l *LocalClient) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash("/" + key))
	if key == "" || clean == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	target := filepath.Join(l.dir, clean)
	if !strings.HasPrefix(target, l.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return target, nil
}
