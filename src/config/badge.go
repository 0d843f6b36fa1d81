package config

// BadgesConfig holds badge generation configuration.
type BadgesConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Dir      string  `yaml:"dir"`       // output directory for <kind>-<job>.svg
	FontSize float64 `yaml:"font_size"` // pixel size (default: 11)
}

// DefaultBadgesConfig returns sensible defaults for badge generation.
func DefaultBadgesConfig() BadgesConfig {
	return BadgesConfig{
		Enabled:  true,
		Dir:      ".qualitygate/badges",
		FontSize: 11,
	}
}
