package config

// Level controls how much of the codebase gets scanned.
type Level string

const (
	LevelChanged Level = "changed"
	LevelFull    Level = "full"
)

// ModuleConfig holds per-module overrides.
type ModuleConfig struct {
	Enabled *bool          `yaml:"enabled,omitempty"`
	Exclude []string       `yaml:"exclude,omitempty"`
	Options map[string]any `yaml:"options,omitempty"`
}

// LintConfig holds lint-specific configuration.
type LintConfig struct {
	Level        Level                   `yaml:"level"`
	CacheDir     string                  `yaml:"cache_dir"`
	BaseBranch   string                  `yaml:"base_branch"` // changed level diffs against this branch
	Exclude      []string                `yaml:"exclude"`
	Modules      map[string]ModuleConfig `yaml:"modules"`
	PreCommit    bool                    `yaml:"pre_commit"` // also run `pre-commit run --all-files`
	ReportDir    string                  `yaml:"report_dir"`
}

// DefaultLintConfig returns production defaults. The pipeline lints the
// whole tree; the changed level is for local use.
func DefaultLintConfig() LintConfig {
	return LintConfig{
		Level:     LevelFull,
		Exclude:   []string{},
		Modules:   map[string]ModuleConfig{},
		ReportDir: ".qualitygate/reports",
	}
}
