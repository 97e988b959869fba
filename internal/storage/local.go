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

	"github.com/fanvault/apiserver/config"
)

// LocalClient stores objects as plain files under a root directory. It backs
// single-node deployments where the server serves /uploads itself.
type LocalClient struct {
	root string
}

// NewLocalClient constructs a local-disk backend rooted at cfg.Dir.
func NewLocalClient(cfg config.LocalStorageConfig) (*LocalClient, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("upload dir is required")
	}
	root, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return &LocalClient{root: root}, nil
}

// EnsureBucket creates the root directory.
func (l *LocalClient) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(l.root, 0o755)
}

// path resolves a key inside the root, rejecting keys that escape it.
func (l *LocalClient) path(key string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(key))
	full := filepath.Join(l.root, cleaned)
	if full == l.root || !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return full, nil
}

// Put writes an object under the root directory.
func (l *LocalClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	full, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	file, err := os.Create(full)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(full)
		return err
	}
	return file.Close()
}

// Get opens a stored object for reading.
func (l *LocalClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := l.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Delete removes a stored object. Missing objects are not an error.
func (l *LocalClient) Delete(ctx context.Context, key string) error {
	full, err := l.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Bucket returns the root directory path.
func (l *LocalClient) Bucket() string {
	return l.root
}
