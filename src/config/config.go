package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".qualitygate.yml"

// Config is the top-level qualitygate configuration.
type Config struct {
	Project     ProjectConfig   `yaml:"project"`
	Workspace   WorkspaceConfig `yaml:"workspace"`
	Triggers    TriggerConfig   `yaml:"triggers"`
	Runtime     RuntimeConfig   `yaml:"runtime"`
	Cache       CacheConfig     `yaml:"cache"`
	Jobs        []JobConfig     `yaml:"jobs"`
	Coverage    CoverageConfig  `yaml:"coverage"`
	Lint        LintConfig      `yaml:"lint"`
	Badges      BadgesConfig    `yaml:"badges"`
	Status      StatusConfig    `yaml:"status"`
	Parallelism int             `yaml:"parallelism"` // 0 = all jobs at once
}

// ProjectConfig identifies the package under test.
type ProjectConfig struct {
	Package   string `yaml:"package"`    // import name, used for --cov and the test target
	SourceDir string `yaml:"source_dir"` // test target relative to the repo root (default: package)
	Pyproject string `yaml:"pyproject"`  // path to pyproject.toml relative to the repo root
}

// WorkspaceConfig controls where jobs get their copy of the sources.
type WorkspaceConfig struct {
	Dir     string `yaml:"dir"`     // per-job checkouts live under <dir>/<job>
	Isolate bool   `yaml:"isolate"` // clone per job; false runs every job in the source dir
	Remote  string `yaml:"remote"`  // clone URL (default: the local repository)
}

// Load reads configuration from a YAML file.
// If path is empty, it tries the default file.
// Returns sensible defaults if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults. A jobs list in the document
// replaces the default jobs entirely.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	cfg.Jobs = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if len(cfg.Jobs) == 0 {
		cfg.Jobs = DefaultJobs()
	}
	for i := range cfg.Jobs {
		cfg.Jobs[i].applyDefaults()
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Project: ProjectConfig{
			Package:   "skada",
			Pyproject: "pyproject.toml",
		},
		Workspace: WorkspaceConfig{
			Dir:     ".qualitygate/work",
			Isolate: true,
		},
		Triggers: DefaultTriggerConfig(),
		Runtime:  DefaultRuntimeConfig(),
		Cache:    DefaultCacheConfig(),
		Jobs:     DefaultJobs(),
		Coverage: DefaultCoverageConfig(),
		Lint:     DefaultLintConfig(),
		Badges:   DefaultBadgesConfig(),
		Status:   DefaultStatusConfig(),
	}
}

// Defaults returns the built-in configuration.
func Defaults() *Config { return defaults() }

// TestTarget returns the directory handed to the test runner.
func (p ProjectConfig) TestTarget() string {
	if p.SourceDir != "" {
		return p.SourceDir
	}
	return p.Package
}
