package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore serves batch files from the local filesystem. Relative keys
// resolve under the configured root; absolute keys are used as given.
type LocalStore struct {
	root string
}

// NewLocalStore creates a filesystem-backed store rooted at root.
func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = "."
	}
	return &LocalStore{root: root}
}

// Open opens the batch file at key.
func (l *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(l.resolve(key))
}

// Exists reports whether the batch file at key is present.
func (l *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	if _, err := os.Stat(l.resolve(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *LocalStore) resolve(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(l.root, key)
}
