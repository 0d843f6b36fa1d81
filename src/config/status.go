package config

// StatusConfig controls per-job commit status publishing.
type StatusConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"` // github, gitlab, gitea; empty = detect from remote
	BaseURL   string `yaml:"base_url"`
	Context   string `yaml:"context"`
	TargetURL string `yaml:"target_url"`
}

// DefaultStatusConfig returns production defaults.
func DefaultStatusConfig() StatusConfig {
	return StatusConfig{
		Context: "qualitygate",
	}
}
