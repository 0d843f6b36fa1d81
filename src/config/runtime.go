package config

// RuntimeConfig pins the language runtime shared by every job.
type RuntimeConfig struct {
	Version     string `yaml:"version"`     // e.g. "3.10"
	Interpreter string `yaml:"interpreter"` // explicit interpreter path or name
	UpgradePip  bool   `yaml:"upgrade_pip"`
	EnvDir      string `yaml:"env_dir"` // per-job virtualenvs live under <env_dir>/<job>
}

// DefaultRuntimeConfig returns production defaults.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Version:    "3.10",
		UpgradePip: true,
		EnvDir:     ".qualitygate/envs",
	}
}
