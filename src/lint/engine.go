// Package lint runs pre-commit style checks over a source tree.
package lint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/sofmeright/qualitygate/src/config"
)

// Engine orchestrates lint modules across files.
type Engine struct {
	Config  config.LintConfig
	RootDir string
	Modules []Module
	Cache   *Cache
	Log     *logrus.Entry

	CacheHits   atomic.Int64
	CacheMisses atomic.Int64
}

// NewEngine creates a lint engine with the selected modules. With no
// explicit selection every default-enabled module not disabled in config
// is used.
func NewEngine(cfg config.LintConfig, rootDir string, moduleNames []string, skipNames []string, cache *Cache, log *logrus.Entry) (*Engine, error) {
	skipSet := make(map[string]bool, len(skipNames))
	for _, name := range skipNames {
		skipSet[name] = true
	}

	explicit := len(moduleNames) > 0
	if !explicit {
		moduleNames = All()
	}

	var modules []Module
	for _, name := range moduleNames {
		if skipSet[name] {
			continue
		}
		m, err := Get(name)
		if err != nil {
			return nil, err
		}
		if !explicit {
			if mc, ok := cfg.Modules[name]; ok && mc.Enabled != nil && !*mc.Enabled {
				continue
			}
			if !m.DefaultEnabled() {
				continue
			}
		}
		if err := configureModule(m, cfg, name); err != nil {
			return nil, fmt.Errorf("lint: configuring %s: %w", name, err)
		}
		modules = append(modules, m)
	}

	if len(modules) == 0 {
		return nil, fmt.Errorf("no lint modules selected")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Engine{
		Config:  cfg,
		RootDir: rootDir,
		Modules: modules,
		Cache:   cache,
		Log:     log,
	}, nil
}

// ModuleStats holds per-module scan statistics.
type ModuleStats struct {
	Name     string
	Files    int
	Cached   int
	Findings int
	Critical int
	Warnings int
}

func (s *ModuleStats) add(findings []Finding, cached bool) {
	s.Files++
	if cached {
		s.Cached++
	}
	for _, f := range findings {
		s.Findings++
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityWarning:
			s.Warnings++
		}
	}
}

// Scan collects files for the configured level, runs every module and
// tree-level check, and returns the sorted report.
func (e *Engine) Scan(ctx context.Context) (*Report, error) {
	files, err := e.CollectFiles()
	if err != nil {
		return nil, fmt.Errorf("collecting files: %w", err)
	}
	all := files

	if e.Config.Level == config.LevelChanged {
		d := &Delta{RootDir: e.RootDir, Base: e.Config.BaseBranch, Log: e.Log}
		changed, err := d.ChangedFiles(ctx)
		if err != nil {
			return nil, err
		}
		files = FilterByDelta(files, changed)
		e.Log.Debugf("delta: %d of %d files changed", len(files), len(all))
	}

	findings, stats, err := e.RunWithStats(ctx, files)
	if err != nil {
		return nil, err
	}
	for i, m := range e.Modules {
		if tm, ok := m.(TreeModule); ok {
			tree := tm.CheckTree(all)
			stats[i].Findings += len(tree)
			findings = append(findings, tree...)
		}
	}
	SortFindings(findings)

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}

	return &Report{
		Files:       len(files),
		Paths:       paths,
		Findings:    findings,
		Stats:       stats,
		CacheHits:   e.CacheHits.Load(),
		CacheMisses: e.CacheMisses.Load(),
	}, nil
}

// Run executes all modules against the given files and returns findings.
func (e *Engine) Run(ctx context.Context, files []FileInfo) ([]Finding, error) {
	findings, _, err := e.RunWithStats(ctx, files)
	return findings, err
}

// RunWithStats executes all modules and returns findings plus per-module statistics.
func (e *Engine) RunWithStats(ctx context.Context, files []FileInfo) ([]Finding, []ModuleStats, error) {
	var (
		mu       sync.Mutex
		findings []Finding
		wg       sync.WaitGroup
		errs     []error
	)

	sem := semaphore.NewWeighted(int64(runtime.NumCPU() * 2))

	modStats := make([]ModuleStats, len(e.Modules))
	for i, m := range e.Modules {
		modStats[i].Name = m.Name()
	}

	useCache := e.Cache != nil && e.Cache.Enabled

	for _, file := range files {
		if e.isExcluded(file.Path) {
			continue
		}

		// Read file content once for cache keying; on error run uncached.
		var content []byte
		if useCache {
			content, _ = os.ReadFile(file.AbsPath)
		}

		for mi, mod := range e.Modules {
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return findings, modStats, err
			}
			wg.Add(1)
			go func(m Module, f FileInfo, data []byte, idx int) {
				defer wg.Done()
				defer sem.Release(1)

				if e.isModuleExcluded(m.Name(), f.Path) {
					return
				}

				var key string
				if useCache && data != nil {
					key = e.Cache.Key(data, m.Name(), e.moduleConfigJSON(m.Name()))
					if cached, ok := e.Cache.Get(key); ok {
						e.CacheHits.Add(1)
						mu.Lock()
						modStats[idx].add(cached, true)
						findings = append(findings, cached...)
						mu.Unlock()
						return
					}
					e.CacheMisses.Add(1)
				}

				results, err := m.Check(ctx, f)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					modStats[idx].Files++
					errs = append(errs, fmt.Errorf("%s: %s: %w", m.Name(), f.Path, err))
					return
				}
				modStats[idx].add(results, false)
				findings = append(findings, results...)

				// Cache even empty results (clean pass).
				if key != "" {
					if cacheErr := e.Cache.Put(key, results); cacheErr != nil {
						e.Log.Debugf("cache: write failed for %s/%s: %v", m.Name(), f.Path, cacheErr)
					}
				}
			}(mod, file, content, mi)
		}
	}

	wg.Wait()

	if len(errs) > 0 {
		return findings, modStats, fmt.Errorf("%d module errors (first: %w)", len(errs), errs[0])
	}
	return findings, modStats, nil
}

// CollectFiles walks the root directory and returns FileInfo for all regular files.
// Hidden directories (.git, .qualitygate, .venv) are skipped.
func (e *Engine) CollectFiles() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(e.RootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(e.RootDir, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			base := filepath.Base(rel)
			if strings.HasPrefix(base, ".") && base != "." {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if e.isExcluded(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Path:    filepath.ToSlash(rel),
			AbsPath: path,
			Size:    info.Size(),
		})
		return nil
	})

	return files, err
}

// ModuleNames returns the names of all active modules in this engine.
func (e *Engine) ModuleNames() []string {
	names := make([]string, len(e.Modules))
	for i, m := range e.Modules {
		names[i] = m.Name()
	}
	return names
}

// normalizeSlashPath converts a path to forward slashes and strips leading "./".
func normalizeSlashPath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	return p
}

// matchExcludePattern matches a single exclude pattern against a normalized path.
// Patterns containing "/" or "**" match against the full path; others match base name only.
func matchExcludePattern(pattern, normPath, baseName string) bool {
	pattern = filepath.ToSlash(pattern)
	if strings.Contains(pattern, "/") || strings.Contains(pattern, "**") {
		return config.MatchGlob(pattern, normPath)
	}
	return config.MatchGlob(pattern, baseName)
}

func matchAny(patterns []string, path string) bool {
	normPath := normalizeSlashPath(path)
	baseName := filepath.Base(normPath)
	for _, pattern := range patterns {
		if matchExcludePattern(pattern, normPath, baseName) {
			return true
		}
	}
	return false
}

func (e *Engine) isExcluded(path string) bool {
	return matchAny(e.Config.Exclude, path)
}

// isModuleExcluded checks per-module exclude patterns. Engine-wide excludes
// keep files out of the scan; module excludes skip only that module.
func (e *Engine) isModuleExcluded(moduleName, path string) bool {
	mc, ok := e.Config.Modules[moduleName]
	if !ok {
		return false
	}
	return matchAny(mc.Exclude, path)
}

// configureModule passes YAML options to modules that implement ConfigurableModule.
func configureModule(m Module, cfg config.LintConfig, name string) error {
	cm, ok := m.(ConfigurableModule)
	if !ok {
		return nil
	}
	mc, exists := cfg.Modules[name]
	if !exists || mc.Options == nil {
		return cm.Configure(nil)
	}
	return cm.Configure(mc.Options)
}

func (e *Engine) moduleConfigJSON(name string) string {
	mc, ok := e.Config.Modules[name]
	if !ok || mc.Options == nil {
		return "{}"
	}
	data, err := json.Marshal(mc.Options)
	if err != nil {
		return "{}"
	}
	return string(data)
}
