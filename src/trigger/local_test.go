package trigger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initRepo(t *testing.T) (string, *git.Repository, plumbing.Hash) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return dir, repo, hash
}

func TestFromRepositoryBranch(t *testing.T) {
	dir, _, hash := initRepo(t)

	ev, err := FromRepository(dir)
	if err != nil {
		t.Fatalf("FromRepository: %v", err)
	}
	if ev.Kind != WorkflowDispatch || ev.Branch != "main" || ev.Commit != hash.String() {
		t.Errorf("got %+v", ev)
	}
}

func TestFromRepositoryDetachedTag(t *testing.T) {
	dir, repo, hash := initRepo(t)
	if _, err := repo.CreateTag("v1.0.0", hash, nil); err != nil {
		t.Fatal(err)
	}
	wt, _ := repo.Worktree()
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash}); err != nil {
		t.Fatal(err)
	}

	ev, err := FromRepository(dir)
	if err != nil {
		t.Fatalf("FromRepository: %v", err)
	}
	if ev.Tag != "v1.0.0" || ev.Branch != "" {
		t.Errorf("got %+v", ev)
	}
}

func TestFromRepositoryNotARepo(t *testing.T) {
	if _, err := FromRepository(t.TempDir()); err == nil {
		t.Error("expected error outside a repository")
	}
}
