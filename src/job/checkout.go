package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/sofmeright/qualitygate/src/trigger"
)

var unsafeDirChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// GitCheckout gives each job its own clone of the repository under
// WorkDir/<job>, checked out at the event's commit. With Isolate off every
// job uses SourceDir in place.
type GitCheckout struct {
	SourceDir string
	Remote    string // clone URL, defaults to SourceDir
	WorkDir   string
	Isolate   bool
	Log       *logrus.Entry
}

// Checkout implements Checkout.
func (g *GitCheckout) Checkout(ctx context.Context, job string, ev trigger.Event) (string, error) {
	if !g.Isolate {
		return g.inPlace(ev)
	}

	dir := filepath.Join(g.WorkDir, unsafeDirChars.ReplaceAllString(job, "_"))
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clearing workspace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", fmt.Errorf("creating workspace: %w", err)
	}

	url := g.Remote
	if url == "" {
		abs, err := filepath.Abs(g.SourceDir)
		if err != nil {
			return "", err
		}
		url = abs
	}

	g.logf("cloning %s into %s", url, dir)
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:  url,
		Tags: git.AllTags,
	})
	if err != nil {
		return "", fmt.Errorf("cloning %s: %w", url, err)
	}

	hash, err := resolveEventRevision(repo, ev)
	if err != nil {
		return "", err
	}
	if hash.IsZero() {
		return dir, nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return "", fmt.Errorf("checking out %s: %w", hash, err)
	}
	g.logf("checked out %s", hash.String()[:12])
	return dir, nil
}

func (g *GitCheckout) inPlace(ev trigger.Event) (string, error) {
	repo, err := git.PlainOpenWithOptions(g.SourceDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("%s is not a git repository: %w", g.SourceDir, err)
	}
	if ev.Commit != "" {
		head, err := repo.Head()
		if err == nil && head.Hash().String() != ev.Commit {
			g.warnf("workspace HEAD %s differs from event commit %s", head.Hash(), ev.Commit)
		}
	}
	return g.SourceDir, nil
}

// resolveEventRevision picks the commit to build: the event's commit, else
// its tag, else its source branch (the head branch of a pull request).
// A zero hash keeps the clone's default HEAD.
func resolveEventRevision(repo *git.Repository, ev trigger.Event) (plumbing.Hash, error) {
	if ev.Commit != "" {
		h, err := repo.ResolveRevision(plumbing.Revision(ev.Commit))
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("commit %s not found: %w", ev.Commit, err)
		}
		return *h, nil
	}

	var names []plumbing.ReferenceName
	switch {
	case ev.Tag != "":
		names = []plumbing.ReferenceName{plumbing.NewTagReferenceName(ev.Tag)}
	case ev.SourceBranch() != "":
		branch := ev.SourceBranch()
		names = []plumbing.ReferenceName{
			plumbing.NewRemoteReferenceName("origin", branch),
			plumbing.NewBranchReferenceName(branch),
		}
	default:
		return plumbing.ZeroHash, nil
	}

	for _, name := range names {
		ref, err := repo.Reference(name, true)
		if err != nil {
			continue
		}
		// Annotated tags point at a tag object.
		if tag, err := repo.TagObject(ref.Hash()); err == nil {
			c, err := tag.Commit()
			if err != nil {
				return plumbing.ZeroHash, err
			}
			return c.Hash, nil
		}
		return ref.Hash(), nil
	}
	return plumbing.ZeroHash, fmt.Errorf("ref %s not found", names[len(names)-1])
}

func (g *GitCheckout) logf(format string, args ...any) {
	if g.Log != nil {
		g.Log.Debugf(format, args...)
	}
}

func (g *GitCheckout) warnf(format string, args ...any) {
	if g.Log != nil {
		g.Log.Warnf(format, args...)
	}
}
