package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Restored records what Restore found, for the matching Save.
type Restored struct {
	Key    string
	Hit    bool
	Digest string // content digest of Path right after restore
}

// Manager restores and saves one dataset directory under one key.
// Managers are per job; the Store is the only thing shared between jobs.
type Manager struct {
	Store Store
	Key   Key
	Path  string
	Log   *logrus.Entry
}

// Restore populates Path from the store. A miss leaves Path untouched and
// is not an error. Any error is meant to be logged and ignored by the
// caller: the test run downloads the data itself.
//
// A hit is unpacked into a staging directory next to Path and moved in
// file by file with rename, so a reader of Path never sees a partly
// written file. When Path already holds the same tree nothing is moved.
func (m *Manager) Restore(ctx context.Context) (Restored, error) {
	res := Restored{Key: m.Key.String()}

	rc, err := m.Store.Get(ctx, res.Key)
	switch {
	case errors.Is(err, ErrNotFound):
		m.logf("cache miss for key %s", res.Key)
	case err != nil:
		return res, fmt.Errorf("restoring %s: %w", res.Key, err)
	default:
		restoreErr := m.restore(rc)
		rc.Close()
		if restoreErr != nil {
			return res, fmt.Errorf("restoring %s: %w", res.Key, restoreErr)
		}
		res.Hit = true
		m.logf("cache restored from key %s", res.Key)
	}

	digest, err := Digest(m.Path)
	if err != nil {
		return res, fmt.Errorf("hashing %s: %w", m.Path, err)
	}
	res.Digest = digest
	return res, nil
}

func (m *Manager) restore(r io.Reader) error {
	parent := filepath.Dir(m.Path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(m.Path)+".restore-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	if err := Unpack(r, staging); err != nil {
		return err
	}

	want, err := Digest(staging)
	if err != nil {
		return err
	}
	have, err := Digest(m.Path)
	if err != nil {
		return err
	}
	if want == have {
		m.logf("%s already matches the cached tree", m.Path)
		return nil
	}
	return moveTree(staging, m.Path)
}

// Save snapshots Path under the key if nothing is stored there yet.
// It is a no-op after an exact-key hit, when Path is empty or missing,
// and when Path is unchanged since Restore. Losing a race against another
// writer returns (false, nil): the first writer's entry stands.
func (m *Manager) Save(ctx context.Context, prev Restored) (bool, error) {
	key := m.Key.String()

	if prev.Hit && prev.Key == key {
		m.logf("cache hit occurred on key %s, not saving", key)
		return false, nil
	}

	empty, err := isEmptyDir(m.Path)
	if err != nil {
		return false, err
	}
	if empty {
		m.logf("%s is empty, not saving", m.Path)
		return false, nil
	}

	digest, err := Digest(m.Path)
	if err != nil {
		return false, fmt.Errorf("hashing %s: %w", m.Path, err)
	}
	if prev.Digest != "" && digest == prev.Digest {
		m.logf("%s unchanged, not saving", m.Path)
		return false, nil
	}

	exists, err := m.Store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", key, err)
	}
	if exists {
		m.logf("cache entry %s already exists, not saving", key)
		return false, nil
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(Pack(m.Path, pw))
	}()

	err = m.Store.PutIfAbsent(ctx, key, pr)
	pr.Close()
	if errors.Is(err, ErrExists) {
		m.logf("cache entry %s written concurrently, keeping the first", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("saving %s: %w", key, err)
	}

	m.logf("cache saved with key %s", key)
	return true, nil
}

func (m *Manager) logf(format string, args ...any) {
	if m.Log != nil {
		m.Log.Infof(format, args...)
	}
}

// ExpandHome resolves a leading "~" against the user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
