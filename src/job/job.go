package job

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/qualitygate/src/cache"
	"github.com/sofmeright/qualitygate/src/coverage"
	"github.com/sofmeright/qualitygate/src/provision"
	"github.com/sofmeright/qualitygate/src/trigger"
)

// Checkout materializes the sources for a job and returns the directory.
type Checkout interface {
	Checkout(ctx context.Context, job string, ev trigger.Event) (string, error)
}

// Provisioner sets up the runtime and installs the package under test;
// *provision.Provisioner implements it.
type Provisioner interface {
	Setup(ctx context.Context, envDir string) (*provision.Env, error)
	Install(ctx context.Context, env *provision.Env, projectDir, pyprojectPath string, extras provision.Extras) error
}

// Linter runs the lint stage over dir.
type Linter interface {
	Lint(ctx context.Context, dir string, env *provision.Env) error
}

// Tester runs the test suite and returns its coverage artifact.
type Tester interface {
	Test(ctx context.Context, dir string, env *provision.Env, def Definition) (*coverage.Artifact, error)
}

// Deps are a job's collaborators. Cache and Coverage are optional.
type Deps struct {
	Checkout    Checkout
	Provisioner Provisioner
	Linter      Linter
	Tester      Tester
	Coverage    Uploader
	Cache       DatasetCache

	EnvDir    string // per-job environments live under EnvDir/<job>
	Pyproject string // relative to the checkout
	TokenEnv  string // name of the variable holding the coverage token
	Getenv    func(string) string
	Upload    coverage.Upload // CI metadata copied into each upload
	Log       *logrus.Entry
}

// Workspace is the state owned by one running job. Nothing in it is
// shared with sibling jobs.
type Workspace struct {
	Event       trigger.Event
	Dir         string
	Env         *provision.Env
	Token       string
	Restored    cache.Restored
	Artifact    *coverage.Artifact
	CoverageURL string
	CacheSaved  bool
}

// StepResult records one executed or skipped step.
type StepResult struct {
	Name     string
	Status   StepStatus
	Err      error
	Duration time.Duration
}

// Result is the terminal record of a job.
type Result struct {
	Name        string
	Status      Status
	Failure     FailureKind
	Err         error
	Steps       []StepResult
	Artifact    *coverage.Artifact
	CoverageURL string
	CacheSaved  bool
	Started     time.Time
	Duration    time.Duration
}

// Warnings returns the non-fatal step errors.
func (r *Result) Warnings() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status == StepWarning {
			out = append(out, s)
		}
	}
	return out
}

// Job is one instance of a Definition bound to an event.
type Job struct {
	Def   Definition
	Event trigger.Event
	Deps  Deps

	mu     sync.Mutex
	status Status
}

// New returns a pending job.
func New(def Definition, ev trigger.Event, deps Deps) *Job {
	return &Job{Def: def, Event: ev, Deps: deps, status: StatusPending}
}

// Status returns the current state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

// Run executes the planned steps in order. The first fatal error fails the
// job and every later step is skipped. Run never panics on step errors and
// always returns a terminal result.
func (j *Job) Run(ctx context.Context) *Result {
	log := j.Deps.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("job", j.Def.Name)

	res := &Result{Name: j.Def.Name, Started: time.Now()}
	j.setStatus(StatusRunning)
	log.Infof("starting %s", j.Def)

	ws := &Workspace{Event: j.Event}
	if j.Deps.TokenEnv != "" && j.Deps.Getenv != nil {
		ws.Token = j.Deps.Getenv(j.Deps.TokenEnv)
	}

	var fatal error
	for _, step := range Plan(j.Def, j.Deps) {
		if fatal != nil {
			res.Steps = append(res.Steps, StepResult{Name: step.Name, Status: StepSkipped})
			continue
		}

		start := time.Now()
		err := ctx.Err()
		if err == nil {
			err = step.Run(ctx, ws)
		}
		sr := StepResult{Name: step.Name, Status: StepSuccess, Err: err, Duration: time.Since(start)}

		switch {
		case err == nil:
			log.WithField("step", step.Name).Debugf("ok in %s", sr.Duration.Round(time.Millisecond))
		case step.ContinueOnError && ctx.Err() == nil:
			sr.Status = StepWarning
			log.WithField("step", step.Name).Warnf("%v (continuing)", err)
		default:
			sr.Status = StepFailure
			kind := step.Kind
			if ctx.Err() != nil {
				kind = FailCancelled
			}
			fatal = &StepError{Kind: kind, Step: step.Name, Err: err}
			log.WithField("step", step.Name).Errorf("%v", err)
		}
		res.Steps = append(res.Steps, sr)
	}

	res.Artifact = ws.Artifact
	res.CoverageURL = ws.CoverageURL
	res.CacheSaved = ws.CacheSaved
	res.Duration = time.Since(res.Started)

	if fatal != nil {
		res.Status = StatusFailure
		res.Failure = KindOf(fatal)
		res.Err = fatal
	} else {
		res.Status = StatusSuccess
	}
	j.setStatus(res.Status)
	log.WithField("status", res.Status).Infof("finished in %s", res.Duration.Round(time.Millisecond))
	return res
}
