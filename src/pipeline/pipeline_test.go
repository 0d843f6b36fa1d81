package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sofmeright/qualitygate/src/cache"
	"github.com/sofmeright/qualitygate/src/config"
	"github.com/sofmeright/qualitygate/src/coverage"
	"github.com/sofmeright/qualitygate/src/job"
	"github.com/sofmeright/qualitygate/src/logging"
	"github.com/sofmeright/qualitygate/src/provision"
	"github.com/sofmeright/qualitygate/src/trigger"
)

type stubCheckout struct{}

func (stubCheckout) Checkout(_ context.Context, name string, _ trigger.Event) (string, error) {
	return "/work/" + name, nil
}

type stubProvisioner struct{}

func (stubProvisioner) Setup(_ context.Context, dir string) (*provision.Env, error) {
	return &provision.Env{Dir: dir, Python: dir + "/bin/python"}, nil
}

func (stubProvisioner) Install(context.Context, *provision.Env, string, string, provision.Extras) error {
	return nil
}

type stubLinter struct{ err error }

func (l stubLinter) Lint(context.Context, string, *provision.Env) error { return l.err }

// stubTester fails the jobs named in fail and tracks how many tests run at
// once.
type stubTester struct {
	fail    map[string]bool
	delay   time.Duration
	running atomic.Int32
	peak    atomic.Int32
}

func (s *stubTester) Test(_ context.Context, _ string, _ *provision.Env, def job.Definition) (*coverage.Artifact, error) {
	n := s.running.Add(1)
	defer s.running.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	art := &coverage.Artifact{Package: "skada", Statements: 10, Missed: 1, Percent: 90}
	if s.fail[def.Name] {
		return art, errors.New("2 failed, 40 passed")
	}
	return art, nil
}

type stubUploader struct {
	mu   sync.Mutex
	jobs []string
}

func (u *stubUploader) Report(_ context.Context, up coverage.Upload) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.jobs = append(u.jobs, up.Name)
	return "https://codecov.example/" + up.Name, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished map[string]job.Status
}

func (o *recordingObserver) JobStarted(_ context.Context, _ *Run, def job.Definition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, def.Name)
}

func (o *recordingObserver) JobFinished(_ context.Context, _ *Run, res *job.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished = make(map[string]job.Status)
	}
	o.finished[res.Name] = res.Status
}

func newTestPipeline(t *testing.T, tester *stubTester, up *stubUploader) *Pipeline {
	t.Helper()
	cfg := config.Defaults()
	cfg.Cache.Enabled = false
	p := New(cfg.Triggers, job.Standard(cfg), func(job.Definition) job.Deps {
		return job.Deps{
			Checkout:    stubCheckout{},
			Provisioner: stubProvisioner{},
			Linter:      stubLinter{},
			Tester:      tester,
			Coverage:    up,
			EnvDir:      "/envs",
			TokenEnv:    "CODECOV_TOKEN",
			Getenv:      func(string) string { return "token" },
			Log:         logging.Discard(),
		}
	})
	p.Log = logging.Discard()
	return p
}

func TestExecuteRunsAllJobsOnMatch(t *testing.T) {
	tester := &stubTester{}
	up := &stubUploader{}
	p := newTestPipeline(t, tester, up)

	run, err := p.Execute(context.Background(), trigger.Event{Kind: trigger.Push, Branch: "main", Commit: "abc"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !run.Triggered() {
		t.Fatalf("push to main should trigger: %s", run.Decision.Reason)
	}
	if len(run.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(run.Results))
	}
	want := []string{"Lint", "Test-minimal", "Test-full"}
	for i, res := range run.Results {
		if res.Name != want[i] {
			t.Errorf("results[%d] = %q, want %q", i, res.Name, want[i])
		}
		if res.Status != job.StatusSuccess {
			t.Errorf("%s: status %s (%v)", res.Name, res.Status, res.Err)
		}
	}
	if !run.Succeeded() {
		t.Error("run should succeed")
	}

	sort.Strings(up.jobs)
	if strings.Join(up.jobs, ",") != "Test-full,Test-minimal" {
		t.Errorf("uploads = %v", up.jobs)
	}
}

func TestExecuteSiblingsAreIndependent(t *testing.T) {
	tester := &stubTester{fail: map[string]bool{"Test-minimal": true}}
	up := &stubUploader{}
	p := newTestPipeline(t, tester, up)

	run, err := p.Execute(context.Background(), trigger.Event{Kind: trigger.PullRequest, Branch: "main"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	status := map[string]job.Status{}
	for _, res := range run.Results {
		status[res.Name] = res.Status
	}
	if status["Test-minimal"] != job.StatusFailure {
		t.Errorf("Test-minimal = %s, want failure", status["Test-minimal"])
	}
	if status["Lint"] != job.StatusSuccess || status["Test-full"] != job.StatusSuccess {
		t.Errorf("siblings should still succeed: %v", status)
	}
	if run.Succeeded() {
		t.Error("run with a failed job should not succeed")
	}
	failed := run.Failed()
	if len(failed) != 1 || failed[0].Failure != job.FailTest {
		t.Errorf("Failed() = %+v", failed)
	}
}

func TestExecuteNotTriggered(t *testing.T) {
	tests := []struct {
		name string
		ev   trigger.Event
	}{
		{"push to feature branch", trigger.Event{Kind: trigger.Push, Branch: "feature/x"}},
		{"pull request into release", trigger.Event{Kind: trigger.PullRequest, Branch: "release"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			p := newTestPipeline(t, &stubTester{}, &stubUploader{})
			p.Observers = []Observer{obs}

			run, err := p.Execute(context.Background(), tt.ev)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if run.Triggered() || len(run.Results) != 0 {
				t.Errorf("expected no jobs, got %d", len(run.Results))
			}
			if len(obs.started) != 0 {
				t.Errorf("observer saw %v", obs.started)
			}
		})
	}
}

func TestExecuteNotifiesObservers(t *testing.T) {
	obs := &recordingObserver{}
	p := newTestPipeline(t, &stubTester{fail: map[string]bool{"Test-full": true}}, &stubUploader{})
	p.Observers = []Observer{obs}

	if _, err := p.Execute(context.Background(), trigger.Event{Kind: trigger.WorkflowDispatch, Branch: "dev"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(obs.started) != 3 {
		t.Errorf("started = %v", obs.started)
	}
	if obs.finished["Test-full"] != job.StatusFailure || obs.finished["Lint"] != job.StatusSuccess {
		t.Errorf("finished = %v", obs.finished)
	}
}

func TestExecuteParallelismLimit(t *testing.T) {
	tester := &stubTester{delay: 20 * time.Millisecond}
	p := newTestPipeline(t, tester, &stubUploader{})
	p.Parallelism = 1

	if _, err := p.Execute(context.Background(), trigger.Event{Kind: trigger.Push, Branch: "main"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := tester.peak.Load(); got != 1 {
		t.Errorf("peak concurrent tests = %d, want 1", got)
	}
}

func TestExecuteUnknownJob(t *testing.T) {
	p := newTestPipeline(t, &stubTester{}, &stubUploader{})
	p.Evaluator = trigger.NewEvaluator(config.DefaultTriggerConfig(), []string{"Deploy"})

	if _, err := p.Execute(context.Background(), trigger.Event{Kind: trigger.Push, Branch: "main"}); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestBuildWiresConfiguredJobs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Cache.Path = filepath.Join(dir, "datasets")
	cfg.Parallelism = 2

	p, err := Build(cfg, Options{SourceDir: dir, Getenv: func(string) string { return "" }, GOOS: "linux"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Parallelism != 2 {
		t.Errorf("parallelism = %d", p.Parallelism)
	}
	if got := strings.Join(job.Names(p.Definitions), ","); got != "Lint,Test-minimal,Test-full" {
		t.Errorf("definitions = %s", got)
	}

	lintDef, _ := job.Find(p.Definitions, "Lint")
	if d := p.Deps(lintDef); d.Cache != nil {
		t.Error("lint job should not get the dataset cache")
	}

	testDef, _ := job.Find(p.Definitions, "Test-full")
	d := p.Deps(testDef)
	if d.Cache == nil || d.Coverage == nil {
		t.Fatal("test job should get cache and coverage")
	}
	if d.TokenEnv != "CODECOV_TOKEN" {
		t.Errorf("token env = %q", d.TokenEnv)
	}
	if !filepath.IsAbs(d.EnvDir) {
		t.Errorf("env dir %q should be absolute", d.EnvDir)
	}
	lm, ok := d.Cache.(*lockedManager)
	if !ok {
		t.Fatalf("cache is %T", d.Cache)
	}
	if lm.m.Key.String() != "Linux-v3" {
		t.Errorf("cache key = %s, want Linux-v3", lm.m.Key)
	}
}

func TestDatasetCacheSharedAcrossJobs(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	if err := os.MkdirAll(data, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(data, "a.csv"), []byte("1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dc := &datasetCache{
		store: &cache.LocalStore{Root: filepath.Join(dir, "store")},
		key:   cache.NewKey("Linux", "v3"),
		path:  data,
	}

	var wg sync.WaitGroup
	var saves atomic.Int32
	for _, name := range []string{"Test-minimal", "Test-full"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := dc.forJob(name)
			prev, err := m.Restore(context.Background())
			if err != nil {
				t.Errorf("%s restore: %v", name, err)
				return
			}
			saved, err := m.Save(context.Background(), prev)
			if err != nil {
				t.Errorf("%s save: %v", name, err)
			}
			if saved {
				saves.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := saves.Load(); got != 1 {
		t.Errorf("snapshot written %d times, want exactly once", got)
	}
}

func TestPrefixWriter(t *testing.T) {
	var mu sync.Mutex
	var buf strings.Builder
	a := newPrefixWriter(&mu, &buf, "Lint")
	b := newPrefixWriter(&mu, &buf, "Test-full")

	_, _ = a.Write([]byte("one\ntw"))
	_, _ = a.Write([]byte("o\n"))
	_, _ = b.Write([]byte("collected 12 items\n\n"))

	want := "[Lint] one\n[Lint] two\n[Test-full] collected 12 items\n[Test-full] \n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
