package config

// CacheBackend selects where dataset snapshots are stored.
type CacheBackend string

const (
	CacheBackendLocal CacheBackend = "local"
	CacheBackendS3    CacheBackend = "s3"
)

// CacheConfig holds dataset cache configuration.
type CacheConfig struct {
	Enabled bool         `yaml:"enabled"`
	Name    string       `yaml:"name"`    // display name of the dataset
	Path    string       `yaml:"path"`    // directory restored before tests; "~" expands to $HOME
	Version string       `yaml:"version"` // bump to invalidate every stored snapshot
	OS      string       `yaml:"os"`      // key OS component (default: runner OS)
	Backend CacheBackend `yaml:"backend"`
	Dir     string       `yaml:"dir"` // local backend root
	S3      S3Config     `yaml:"s3"`
}

// S3Config configures the S3-compatible cache backend.
// Credentials are read from the named environment variables at run time.
type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Prefix       string `yaml:"prefix"`
	UseSSL       bool   `yaml:"use_ssl"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// DefaultCacheConfig returns production defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: true,
		Name:    "skada_datasets",
		Path:    "~/skada_datasets",
		Version: "v3",
		Backend: CacheBackendLocal,
		Dir:     ".qualitygate/cache/datasets",
		S3: S3Config{
			Prefix:       "qualitygate/datasets",
			UseSSL:       true,
			AccessKeyEnv: "QUALITYGATE_S3_ACCESS_KEY",
			SecretKeyEnv: "QUALITYGATE_S3_SECRET_KEY",
		},
	}
}
