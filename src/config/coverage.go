package config

// CoverageConfig holds coverage upload configuration.
type CoverageConfig struct {
	Enabled     bool     `yaml:"enabled"`
	URL         string   `yaml:"url"`              // upload service base URL
	TokenEnv    string   `yaml:"token_env"`        // environment variable holding the upload token
	FailOnError bool     `yaml:"fail_ci_if_error"` // upload failure fails the job
	Verbose     bool     `yaml:"verbose"`
	ReportDir   string   `yaml:"report_dir"` // per-job XML reports
	Flags       []string `yaml:"flags,omitempty"`
}

// DefaultCoverageConfig returns production defaults.
func DefaultCoverageConfig() CoverageConfig {
	return CoverageConfig{
		Enabled:     true,
		URL:         "https://codecov.io",
		TokenEnv:    "CODECOV_TOKEN",
		FailOnError: true,
		Verbose:     true,
		ReportDir:   ".qualitygate/coverage",
	}
}
