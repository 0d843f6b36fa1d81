package job

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/sofmeright/qualitygate/src/cache"
	"github.com/sofmeright/qualitygate/src/config"
	"github.com/sofmeright/qualitygate/src/coverage"
)

// Step is one unit of a job. A step with ContinueOnError set never fails
// the job; its error is recorded as a warning.
type Step struct {
	Name            string
	Kind            FailureKind
	ContinueOnError bool
	Run             func(ctx context.Context, ws *Workspace) error
}

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailure StepStatus = "failure"
	StepWarning StepStatus = "warning" // failed, but ContinueOnError
	StepSkipped StepStatus = "skipped"
)

// Step names.
const (
	StepCheckout     = "checkout"
	StepRestoreCache = "restore-cache"
	StepSetupRuntime = "setup-runtime"
	StepInstall      = "install"
	StepLint         = "lint"
	StepTest         = "test"
	StepUpload       = "upload-coverage"
	StepSaveCache    = "save-cache"
)

// Plan returns the ordered steps for def:
//
//	lint: checkout, setup-runtime, lint
//	test: checkout, restore-cache, setup-runtime, install, test,
//	      upload-coverage, save-cache
//
// Cache and coverage steps are omitted when disabled or when deps has no
// collaborator for them.
func Plan(def Definition, deps Deps) []Step {
	steps := []Step{{
		Name: StepCheckout,
		Kind: FailCheckout,
		Run: func(ctx context.Context, ws *Workspace) error {
			dir, err := deps.Checkout.Checkout(ctx, def.Name, ws.Event)
			ws.Dir = dir
			return err
		},
	}}

	useCache := def.Kind == config.JobKindTest && def.Cache && deps.Cache != nil
	if useCache {
		steps = append(steps, Step{
			Name:            StepRestoreCache,
			ContinueOnError: true,
			Run: func(ctx context.Context, ws *Workspace) error {
				res, err := deps.Cache.Restore(ctx)
				ws.Restored = res
				return err
			},
		})
	}

	steps = append(steps, Step{
		Name: StepSetupRuntime,
		Kind: FailProvision,
		Run: func(ctx context.Context, ws *Workspace) error {
			env, err := deps.Provisioner.Setup(ctx, filepath.Join(deps.EnvDir, def.Name))
			ws.Env = env
			return err
		},
	})

	if def.Kind == config.JobKindLint {
		return append(steps, Step{
			Name: StepLint,
			Kind: FailLint,
			Run: func(ctx context.Context, ws *Workspace) error {
				return deps.Linter.Lint(ctx, ws.Dir, ws.Env)
			},
		})
	}

	steps = append(steps,
		Step{
			Name: StepInstall,
			Kind: FailProvision,
			Run: func(ctx context.Context, ws *Workspace) error {
				return deps.Provisioner.Install(ctx, ws.Env, ws.Dir, deps.Pyproject, def.Extras)
			},
		},
		Step{
			Name: StepTest,
			Kind: FailTest,
			Run: func(ctx context.Context, ws *Workspace) error {
				art, err := deps.Tester.Test(ctx, ws.Dir, ws.Env, def)
				if art != nil {
					art.Job = def.Name
					ws.Artifact = art
				}
				return err
			},
		},
	)

	if def.Coverage && deps.Coverage != nil {
		steps = append(steps, Step{
			Name: StepUpload,
			Kind: FailCoverage,
			Run: func(ctx context.Context, ws *Workspace) error {
				if ws.Artifact == nil {
					return fmt.Errorf("no coverage artifact")
				}
				u := deps.Upload
				u.Artifact = ws.Artifact
				u.Token = ws.Token
				u.Name = def.Name
				u.Commit = ws.Event.Commit
				u.Branch = ws.Event.SourceBranch()
				u.Tag = ws.Event.Tag
				if ws.Event.PR > 0 {
					u.PR = strconv.Itoa(ws.Event.PR)
				}
				url, err := deps.Coverage.Report(ctx, u)
				ws.CoverageURL = url
				return err
			},
		})
	}

	if useCache {
		steps = append(steps, Step{
			Name:            StepSaveCache,
			ContinueOnError: true,
			Run: func(ctx context.Context, ws *Workspace) error {
				saved, err := deps.Cache.Save(ctx, ws.Restored)
				ws.CacheSaved = saved
				return err
			},
		})
	}
	return steps
}

// DatasetCache restores and saves the dataset directory; *cache.Manager
// implements it.
type DatasetCache interface {
	Restore(ctx context.Context) (cache.Restored, error)
	Save(ctx context.Context, prev cache.Restored) (bool, error)
}

// Uploader reports a coverage artifact; *coverage.Reporter implements it.
type Uploader interface {
	Report(ctx context.Context, u coverage.Upload) (string, error)
}
