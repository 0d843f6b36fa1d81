package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runtime.Version != "3.10" {
		t.Errorf("runtime.version = %q, want 3.10", cfg.Runtime.Version)
	}
	if cfg.Cache.Version != "v3" {
		t.Errorf("cache.version = %q, want v3", cfg.Cache.Version)
	}
	if !cfg.Coverage.FailOnError {
		t.Error("coverage.fail_ci_if_error should default to true")
	}
	if len(cfg.Jobs) != 3 {
		t.Fatalf("got %d default jobs, want 3", len(cfg.Jobs))
	}
	want := []string{"Lint", "Test-minimal", "Test-full"}
	for i, j := range cfg.Jobs {
		if j.Name != want[i] {
			t.Errorf("jobs[%d] = %q, want %q", i, j.Name, want[i])
		}
	}
	if _, err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".qualitygate.yml")
	doc := `
project:
  package: mypkg
cache:
  version: v4
jobs:
  - name: Unit
    extras: [test]
    test_args: ["-x"]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Project.Package != "mypkg" {
		t.Errorf("package = %q", cfg.Project.Package)
	}
	if cfg.Cache.Version != "v4" {
		t.Errorf("cache.version = %q", cfg.Cache.Version)
	}
	// untouched sections keep their defaults
	if cfg.Cache.Path != "~/skada_datasets" {
		t.Errorf("cache.path = %q", cfg.Cache.Path)
	}
	if len(cfg.Jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(cfg.Jobs))
	}
	j := cfg.Jobs[0]
	if j.Kind != JobKindTest {
		t.Errorf("kind defaulted to %q, want test", j.Kind)
	}
	if !j.UsesCache() || !j.UploadsCoverage() {
		t.Error("test jobs should cache and upload coverage by default")
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("jobs: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "duplicate job",
			mutate:  func(c *Config) { c.Jobs = append(c.Jobs, JobConfig{Name: "Lint", Kind: JobKindLint}) },
			wantErr: `duplicate job name "Lint"`,
		},
		{
			name:    "unknown kind",
			mutate:  func(c *Config) { c.Jobs[0].Kind = "deploy" },
			wantErr: `unknown job kind "deploy"`,
		},
		{
			name:    "bad extra",
			mutate:  func(c *Config) { c.Jobs[1].Extras = []string{"te st"} },
			wantErr: `invalid extra name "te st"`,
		},
		{
			name:    "bad cache version",
			mutate:  func(c *Config) { c.Cache.Version = "" },
			wantErr: "cache.version",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Cache.Backend = CacheBackendS3 },
			wantErr: "cache.s3",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Status.Provider = "bitbucket" },
			wantErr: "status.provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			_, err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateWarnsOnSoftCoverage(t *testing.T) {
	cfg := Defaults()
	cfg.Coverage.FailOnError = false
	warnings, err := Validate(cfg)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "fail_ci_if_error") {
		t.Errorf("warnings = %v", warnings)
	}
}
