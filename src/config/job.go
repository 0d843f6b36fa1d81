package config

// JobKind selects the step sequence a job runs.
type JobKind string

const (
	JobKindLint JobKind = "lint"
	JobKindTest JobKind = "test"
)

// JobConfig declares one pipeline job.
type JobConfig struct {
	Name     string   `yaml:"name"`
	Kind     JobKind  `yaml:"kind"`
	Extras   []string `yaml:"extras,omitempty"`
	Cache    *bool    `yaml:"cache,omitempty"`    // restore/save the dataset cache (default: test jobs)
	Coverage *bool    `yaml:"coverage,omitempty"` // upload coverage (default: test jobs)
	TestArgs []string `yaml:"test_args,omitempty"`
}

// UsesCache reports whether the job restores and saves the dataset cache.
func (j JobConfig) UsesCache() bool {
	if j.Cache != nil {
		return *j.Cache
	}
	return j.Kind == JobKindTest
}

// UploadsCoverage reports whether the job uploads a coverage artifact.
func (j JobConfig) UploadsCoverage() bool {
	if j.Coverage != nil {
		return *j.Coverage
	}
	return j.Kind == JobKindTest
}

func (j *JobConfig) applyDefaults() {
	if j.Kind == "" {
		j.Kind = JobKindTest
	}
}

// DefaultJobs returns Lint, Test-minimal and Test-full.
func DefaultJobs() []JobConfig {
	return []JobConfig{
		{Name: "Lint", Kind: JobKindLint},
		{Name: "Test-minimal", Kind: JobKindTest, Extras: []string{"test"}},
		{Name: "Test-full", Kind: JobKindTest, Extras: []string{"deep", "test"}},
	}
}
