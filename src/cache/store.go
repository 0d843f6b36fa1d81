package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sofmeright/qualitygate/src/config"
)

var (
	// ErrNotFound is returned by Store.Get on a cache miss.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrExists is returned by Store.PutIfAbsent when the key was already written.
	ErrExists = errors.New("cache: entry already exists")
)

// Store persists snapshot archives by key. Entries are immutable: once a key
// has been written, PutIfAbsent never replaces it.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	PutIfAbsent(ctx context.Context, key string, r io.Reader) error
}

const archiveExt = ".tar.gz"

// NewStore opens the configured backend. Relative local directories are
// resolved against baseDir.
func NewStore(cfg config.CacheConfig, baseDir string, getenv func(string) string) (Store, error) {
	switch cfg.Backend {
	case config.CacheBackendS3:
		return NewS3Store(cfg.S3, getenv)
	case config.CacheBackendLocal, "":
		root := cfg.Dir
		if !filepath.IsAbs(root) {
			root = filepath.Join(baseDir, root)
		}
		return &LocalStore{Root: root}, nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
