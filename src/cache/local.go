package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps archives as files under Root.
type LocalStore struct {
	Root string
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.Root, key+archiveExt)
}

// Get opens the archive for key.
func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Exists reports whether key has been written.
func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// PutIfAbsent writes r under key unless the key already exists.
// The archive is staged in a temp file and published with a hard link,
// which fails atomically when another writer got there first.
func (s *LocalStore) PutIfAbsent(ctx context.Context, key string, r io.Reader) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Root, ".put-*")
	if err != nil {
		return fmt.Errorf("staging cache entry: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Link(tmpName, s.path(key)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("publishing cache entry: %w", err)
	}
	return nil
}
