package lint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/sirupsen/logrus"
)

// baseEnvVars name the branch a change is proposed against, in lookup order.
var baseEnvVars = []string{
	"QUALITYGATE_BASE_BRANCH",
	"GITHUB_BASE_REF",                     // pull_request on GitHub and Gitea Actions
	"CI_MERGE_REQUEST_TARGET_BRANCH_NAME", // GitLab merge requests
}

// Delta finds the files a change touches: everything that differs from
// the merge base with the base branch, plus uncommitted edits.
type Delta struct {
	RootDir string
	Base    string // base branch; empty means detect
	Getenv  func(string) string
	Log     *logrus.Entry
}

// ChangedFiles returns the changed paths, slash-separated and relative to
// the repository root. A nil map means no baseline could be established
// and the caller should scan everything.
func (d *Delta) ChangedFiles(ctx context.Context) (map[string]bool, error) {
	repo, err := git.PlainOpenWithOptions(d.RootDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		d.debugf("not a git repository, scanning all files")
		return nil, nil
	}

	committed, err := d.sinceBase(ctx, repo)
	if err != nil {
		d.debugf("no baseline (%v), scanning all files", err)
		return nil, nil
	}
	if committed == nil {
		return nil, nil
	}

	if err := addUncommitted(repo, committed); err != nil {
		d.debugf("worktree status failed (%v), scanning all files", err)
		return nil, nil
	}
	return committed, nil
}

// BaseBranch resolves the branch to diff against: the explicit Base, the
// CI environment, origin's default branch, then "main".
func (d *Delta) BaseBranch(repo *git.Repository) string {
	if d.Base != "" {
		return d.Base
	}
	getenv := d.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, v := range baseEnvVars {
		if b := getenv(v); b != "" {
			return b
		}
	}
	if ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", "HEAD"), false); err == nil {
		if b, ok := strings.CutPrefix(ref.Target().String(), "refs/remotes/origin/"); ok {
			return b
		}
	}
	return "main"
}

// sinceBase diffs HEAD against its merge base with the base branch. When
// HEAD is the base branch tip the last commit is diffed against its parent.
// A root commit on the base branch yields nil: every file is new.
func (d *Delta) sinceBase(ctx context.Context, repo *git.Repository) (map[string]bool, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, err
	}

	base := d.BaseBranch(repo)
	baseCommit, err := branchCommit(repo, base)
	if err != nil {
		return nil, err
	}

	var from *object.Commit
	if baseCommit.Hash == headCommit.Hash {
		if headCommit.NumParents() == 0 {
			return nil, nil
		}
		if from, err = headCommit.Parent(0); err != nil {
			return nil, err
		}
	} else {
		bases, err := headCommit.MergeBase(baseCommit)
		if err != nil {
			return nil, fmt.Errorf("merge base with %s: %w", base, err)
		}
		if len(bases) == 0 {
			return nil, fmt.Errorf("no common history with %s", base)
		}
		from = bases[0]
	}
	d.debugf("diffing against %s (%s)", base, from.Hash.String()[:12])

	fromTree, err := from.Tree()
	if err != nil {
		return nil, err
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTreeWithOptions(ctx, fromTree, headTree, &object.DiffTreeOptions{})
	if err != nil {
		return nil, fmt.Errorf("diffing trees: %w", err)
	}

	changed := make(map[string]bool, len(changes))
	for _, c := range changes {
		if name := changedPath(c); name != "" {
			changed[name] = true
		}
	}
	return changed, nil
}

func branchCommit(repo *git.Repository, branch string) (*object.Commit, error) {
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(branch),
		plumbing.NewRemoteReferenceName("origin", branch),
	} {
		if ref, err := repo.Reference(name, true); err == nil {
			return repo.CommitObject(ref.Hash())
		}
	}
	return nil, fmt.Errorf("branch %s not found", branch)
}

// addUncommitted adds staged, unstaged and untracked paths to changed.
func addUncommitted(repo *git.Repository, changed map[string]bool) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	status, err := wt.Status()
	if err != nil {
		return err
	}
	for path, s := range status {
		if s.Worktree != git.Unmodified || s.Staging != git.Unmodified {
			changed[path] = true
		}
	}
	return nil
}

func changedPath(c *object.Change) string {
	action, err := c.Action()
	if err != nil {
		return ""
	}
	if action == merkletrie.Delete {
		return c.From.Name
	}
	return c.To.Name
}

func (d *Delta) debugf(format string, args ...any) {
	if d.Log != nil {
		d.Log.Debugf("delta: "+format, args...)
	}
}

// FilterByDelta keeps the files in changed. A nil set keeps everything.
func FilterByDelta(files []FileInfo, changed map[string]bool) []FileInfo {
	if changed == nil {
		return files
	}
	kept := make([]FileInfo, 0, len(changed))
	for _, f := range files {
		p := strings.TrimPrefix(filepath.ToSlash(f.Path), "./")
		if changed[p] {
			kept = append(kept, f)
		}
	}
	return kept
}
