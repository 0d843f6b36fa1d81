package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/qualitygate/src/cache"
	"github.com/sofmeright/qualitygate/src/command"
	"github.com/sofmeright/qualitygate/src/config"
	"github.com/sofmeright/qualitygate/src/coverage"
	"github.com/sofmeright/qualitygate/src/job"
	"github.com/sofmeright/qualitygate/src/lint"
	"github.com/sofmeright/qualitygate/src/logging"
	"github.com/sofmeright/qualitygate/src/provision"
)

// Options are the run inputs that do not come from the config file.
type Options struct {
	SourceDir string // repository root
	Runner    command.Runner
	Out       io.Writer // tool output (pip, pytest, lint report), prefixed per job
	Color     bool
	Getenv    func(string) string
	GOOS      string
}

// Build assembles a pipeline from configuration.
func Build(cfg *config.Config, opts Options) (*Pipeline, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Runner == nil {
		opts.Runner = &command.Exec{Log: logging.C("exec")}
	}
	src, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, err
	}
	resolve := func(p string) string { return absUnder(src, p) }

	var dataset *datasetCache
	if cfg.Cache.Enabled {
		store, err := cache.NewStore(cfg.Cache, src, opts.Getenv)
		if err != nil {
			return nil, err
		}
		path, err := cache.ExpandHome(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		osName := cfg.Cache.OS
		if osName == "" {
			osName = cache.RunnerOS(opts.GOOS)
		}
		dataset = &datasetCache{
			store: store,
			key:   cache.NewKey(osName, cfg.Cache.Version),
			path:  resolve(path),
		}
	}

	lintCfg := cfg.Lint
	lintCfg.ReportDir = resolve(lintCfg.ReportDir)
	if lintCfg.CacheDir == "" {
		lintCfg.CacheDir = lint.DefaultCacheDir
	}
	lintCfg.CacheDir = resolve(lintCfg.CacheDir)

	runtimeCfg := cfg.Runtime
	envDir := resolve(runtimeCfg.EnvDir)
	metadata := coverage.Metadata(opts.Getenv)

	var outMu sync.Mutex
	deps := func(def job.Definition) job.Deps {
		log := logging.C("job")
		var out io.Writer
		if opts.Out != nil {
			out = newPrefixWriter(&outMu, opts.Out, def.Name)
		}
		d := job.Deps{
			Checkout: &job.GitCheckout{
				SourceDir: src,
				Remote:    cfg.Workspace.Remote,
				WorkDir:   resolve(cfg.Workspace.Dir),
				Isolate:   cfg.Workspace.Isolate,
				Log:       log,
			},
			Provisioner: &provision.Provisioner{
				Config: runtimeCfg,
				Runner: opts.Runner,
				Log:    log,
				Stdout: out,
				Stderr: out,
			},
			Linter: &job.EngineLinter{
				Config: lintCfg,
				Runner: opts.Runner,
				Out:    out,
				Color:  opts.Color,
				Log:    log,
			},
			Tester: &job.Pytest{
				Package:   cfg.Project.Package,
				Target:    cfg.Project.TestTarget(),
				ReportDir: resolve(cfg.Coverage.ReportDir),
				Flags:     cfg.Coverage.Flags,
				Runner:    opts.Runner,
				Out:       out,
				Log:       log,
			},
			EnvDir:    envDir,
			Pyproject: cfg.Project.Pyproject,
			TokenEnv:  cfg.Coverage.TokenEnv,
			Getenv:    opts.Getenv,
			Upload:    metadata,
			Log:       log,
		}
		if cfg.Coverage.Enabled {
			covLog := logging.C("coverage").WithField("job", def.Name)
			d.Coverage = &coverage.Reporter{
				Uploader:    coverage.NewCodecov(cfg.Coverage.URL, cfg.Coverage.Verbose, covLog),
				FailOnError: cfg.Coverage.FailOnError,
				Log:         covLog,
			}
		}
		if dataset != nil && def.Cache {
			d.Cache = dataset.forJob(def.Name)
		}
		return d
	}

	p := New(cfg.Triggers, job.Standard(cfg), deps)
	p.Parallelism = cfg.Parallelism
	p.Log = logging.C("pipeline")
	return p, nil
}

// datasetCache hands out one cache.Manager per job. Jobs on the same host
// share the dataset directory, so restore and save are serialized. A
// restore moves files in by rename, so a sibling whose tests are already
// reading the directory keeps its open files intact.
type datasetCache struct {
	mu    sync.Mutex
	store cache.Store
	key   cache.Key
	path  string
}

func (c *datasetCache) forJob(name string) job.DatasetCache {
	return &lockedManager{
		mu: &c.mu,
		m: &cache.Manager{
			Store: c.store,
			Key:   c.key,
			Path:  c.path,
			Log:   logging.C("cache").WithField("job", name),
		},
	}
}

type lockedManager struct {
	mu *sync.Mutex
	m  *cache.Manager
}

func (l *lockedManager) Restore(ctx context.Context) (cache.Restored, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.m.Restore(ctx)
}

func (l *lockedManager) Save(ctx context.Context, prev cache.Restored) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.m.Save(ctx, prev)
}

// CacheManager returns a standalone manager for the configured dataset
// cache, for the cache subcommands.
func CacheManager(cfg *config.Config, sourceDir string, getenv func(string) string, log *logrus.Entry) (*cache.Manager, error) {
	if !cfg.Cache.Enabled {
		return nil, fmt.Errorf("dataset cache is disabled")
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	store, err := cache.NewStore(cfg.Cache, sourceDir, getenv)
	if err != nil {
		return nil, err
	}
	path, err := cache.ExpandHome(cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	return &cache.Manager{
		Store: store,
		Key:   cache.NewKey(cfg.Cache.OS, cfg.Cache.Version),
		Path:  absUnder(sourceDir, path),
		Log:   log,
	}, nil
}

func absUnder(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
