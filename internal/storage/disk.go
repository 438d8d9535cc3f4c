package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DiskStore writes files under a root directory.
type DiskStore struct {
	root string
	now  func() time.Time
}

// NewDiskStore returns a store rooted at root.
func NewDiskStore(root string) *DiskStore {
	if root == "" {
		root = "uploads"
	}
	return &DiskStore{root: root, now: time.Now}
}

// Save copies r to a fresh file and returns its slash-separated path
// relative to the root.
func (s *DiskStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := objectKey(originalName, s.now())
	full := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write media file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("close media file: %w", err)
	}
	return key, nil
}
