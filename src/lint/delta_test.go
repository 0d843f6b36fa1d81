package lint_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/sofmeright/qualitygate/src/config"
	"github.com/sofmeright/qualitygate/src/lint"
)

type gitTree struct {
	t    *testing.T
	dir  string
	repo *git.Repository
}

func newGitTree(t *testing.T) *gitTree {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	return &gitTree{t: t, dir: dir, repo: repo}
}

func (g *gitTree) write(name, content string) {
	g.t.Helper()
	path := filepath.Join(g.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		g.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		g.t.Fatal(err)
	}
}

func (g *gitTree) commit(files map[string]string) {
	g.t.Helper()
	wt, err := g.repo.Worktree()
	if err != nil {
		g.t.Fatal(err)
	}
	for name, content := range files {
		g.write(name, content)
		if _, err := wt.Add(name); err != nil {
			g.t.Fatal(err)
		}
	}
	if _, err := wt.Commit("update", &git.CommitOptions{
		Author: &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Now()},
	}); err != nil {
		g.t.Fatalf("commit: %v", err)
	}
}

func (g *gitTree) branch(name string) {
	g.t.Helper()
	wt, err := g.repo.Worktree()
	if err != nil {
		g.t.Fatal(err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name), Create: true}); err != nil {
		g.t.Fatalf("checkout %s: %v", name, err)
	}
}

func noEnv(string) string { return "" }

func keys(m map[string]bool) string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// featureTree is main with two files, plus a feature branch that edits one,
// adds another, and has an uncommitted file on top.
func featureTree(t *testing.T) *gitTree {
	t.Helper()
	g := newGitTree(t)
	g.commit(map[string]string{"a.yaml": "a: 1\n", "b.yaml": "b: 1\n"})
	g.branch("feature-x")
	g.commit(map[string]string{"b.yaml": "b: 2\n", "c.toml": "c = 1\n"})
	g.write("d.yaml", "d: 1\n")
	return g
}

func TestDeltaSinceMergeBase(t *testing.T) {
	g := featureTree(t)

	d := &lint.Delta{RootDir: g.dir, Base: "main", Getenv: noEnv}
	changed, err := d.ChangedFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := keys(changed); got != "b.yaml,c.toml,d.yaml" {
		t.Errorf("changed = %s", got)
	}
}

func TestDeltaOnBaseTip(t *testing.T) {
	g := newGitTree(t)
	g.commit(map[string]string{"a.yaml": "a: 1\n"})

	d := &lint.Delta{RootDir: g.dir, Base: "main", Getenv: noEnv}
	changed, err := d.ChangedFiles(context.Background())
	if err != nil || changed != nil {
		t.Fatalf("root commit: changed=%v err=%v, want full scan", changed, err)
	}

	g.commit(map[string]string{"b.yaml": "b: 1\n"})
	changed, err = d.ChangedFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := keys(changed); got != "b.yaml" {
		t.Errorf("changed = %s, want the last commit", got)
	}
}

func TestDeltaFallsBackToFullScan(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
		base string
	}{
		{"not a repository", func(t *testing.T) string { return t.TempDir() }, "main"},
		{"unknown base", func(t *testing.T) string { return featureTree(t).dir }, "release"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &lint.Delta{RootDir: tt.dir(t), Base: tt.base, Getenv: noEnv}
			changed, err := d.ChangedFiles(context.Background())
			if err != nil || changed != nil {
				t.Errorf("changed=%v err=%v, want nil, nil", changed, err)
			}
		})
	}
}

func TestDeltaBaseBranch(t *testing.T) {
	g := newGitTree(t)
	g.commit(map[string]string{"a.yaml": "a: 1\n"})

	tests := []struct {
		name string
		base string
		env  map[string]string
		want string
	}{
		{"explicit", "develop", map[string]string{"GITHUB_BASE_REF": "main"}, "develop"},
		{"override env", "", map[string]string{"QUALITYGATE_BASE_BRANCH": "stable", "GITHUB_BASE_REF": "main"}, "stable"},
		{"pull request", "", map[string]string{"GITHUB_BASE_REF": "release"}, "release"},
		{"merge request", "", map[string]string{"CI_MERGE_REQUEST_TARGET_BRANCH_NAME": "trunk"}, "trunk"},
		{"default", "", nil, "main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &lint.Delta{RootDir: g.dir, Base: tt.base, Getenv: func(k string) string { return tt.env[k] }}
			if got := d.BaseBranch(g.repo); got != tt.want {
				t.Errorf("BaseBranch = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScanChangedLevel(t *testing.T) {
	g := featureTree(t)

	for _, tt := range []struct {
		level config.Level
		files int
	}{
		{config.LevelChanged, 3},
		{config.LevelFull, 4},
	} {
		cfg := config.DefaultLintConfig()
		cfg.Level = tt.level
		cfg.BaseBranch = "main"
		rep, err := newEngine(t, cfg, g.dir, nil).Scan(context.Background())
		if err != nil {
			t.Fatalf("%s: Scan: %v", tt.level, err)
		}
		if rep.Files != tt.files {
			t.Errorf("%s level scanned %d files (%v), want %d", tt.level, rep.Files, rep.Paths, tt.files)
		}
	}
}
