package storagenode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore persists chunk blobs as flat files under a root directory,
// named directly by their key ("<filename>.chunk<index>"). Put writes to a
// temp file in the same directory and renames into place, so a concurrent
// Open never observes a partial write.
type LocalStore struct {
	root string
}

// NewLocalStore creates (if needed) root and returns a Store backed by it.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storagenode: create storage dir %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.Base(key))
}

func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader) error {
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("storagenode: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, body); err != nil {
		cleanup()
		return fmt.Errorf("storagenode: write chunk body: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("storagenode: sync chunk body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storagenode: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storagenode: rename into place: %w", err)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("storagenode: open chunk %s: %w", key, err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storagenode: delete chunk %s: %w", key, err)
	}
	return nil
}
