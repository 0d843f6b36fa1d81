package config

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	extraNameRe  = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)
	cacheTokenRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// Validate checks structural invariants of a loaded Config.
// Returns warnings (soft issues) and a hard error if the config is invalid.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs []string

	// ── Project ───────────────────────────────────────────────────────────

	if cfg.Project.Package == "" {
		errs = append(errs, "project.package: required")
	}

	// ── Runtime ───────────────────────────────────────────────────────────

	if strings.TrimSpace(cfg.Runtime.Version) == "" {
		errs = append(errs, "runtime.version: required")
	}

	// ── Triggers ──────────────────────────────────────────────────────────

	t := cfg.Triggers
	if !t.WorkflowDispatch && t.PullRequest == nil && t.Push == nil && t.Create == nil {
		warnings = append(warnings, "triggers: no event kinds subscribed; every event will be ignored")
	}

	// ── Jobs ──────────────────────────────────────────────────────────────

	if len(cfg.Jobs) == 0 {
		errs = append(errs, "jobs: at least one job is required")
	}
	names := make(map[string]bool, len(cfg.Jobs))
	for i, j := range cfg.Jobs {
		jpath := fmt.Sprintf("jobs[%d]", i)

		if j.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: name is required", jpath))
		} else if names[j.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate job name %q", jpath, j.Name))
		} else {
			names[j.Name] = true
		}

		switch j.Kind {
		case JobKindLint:
			if len(j.Extras) > 0 {
				warnings = append(warnings, fmt.Sprintf("%s: extras are ignored for lint jobs", jpath))
			}
		case JobKindTest:
		default:
			errs = append(errs, fmt.Sprintf("%s: unknown job kind %q (supported: lint, test)", jpath, j.Kind))
		}

		for _, e := range j.Extras {
			if !extraNameRe.MatchString(e) {
				errs = append(errs, fmt.Sprintf("%s: invalid extra name %q", jpath, e))
			}
		}
	}

	// ── Cache ─────────────────────────────────────────────────────────────

	if cfg.Cache.Enabled {
		if cfg.Cache.Path == "" {
			errs = append(errs, "cache.path: required when the cache is enabled")
		}
		if !cacheTokenRe.MatchString(cfg.Cache.Version) {
			errs = append(errs, fmt.Sprintf("cache.version: %q must be a non-empty token of [A-Za-z0-9._-]", cfg.Cache.Version))
		}
		if cfg.Cache.OS != "" && !cacheTokenRe.MatchString(cfg.Cache.OS) {
			errs = append(errs, fmt.Sprintf("cache.os: %q must be a token of [A-Za-z0-9._-]", cfg.Cache.OS))
		}
		switch cfg.Cache.Backend {
		case CacheBackendLocal:
			if cfg.Cache.Dir == "" {
				errs = append(errs, "cache.dir: required for the local backend")
			}
		case CacheBackendS3:
			if cfg.Cache.S3.Endpoint == "" || cfg.Cache.S3.Bucket == "" {
				errs = append(errs, "cache.s3: endpoint and bucket are required for the s3 backend")
			}
		default:
			errs = append(errs, fmt.Sprintf("cache.backend: unknown backend %q (supported: local, s3)", cfg.Cache.Backend))
		}
	}

	// ── Coverage ──────────────────────────────────────────────────────────

	if cfg.Coverage.Enabled {
		if cfg.Coverage.URL == "" {
			errs = append(errs, "coverage.url: required when coverage upload is enabled")
		}
		if cfg.Coverage.TokenEnv == "" {
			errs = append(errs, "coverage.token_env: required when coverage upload is enabled")
		}
		if !cfg.Coverage.FailOnError {
			warnings = append(warnings, "coverage.fail_ci_if_error: false; upload failures will not fail jobs")
		}
	}

	// ── Status ────────────────────────────────────────────────────────────

	switch cfg.Status.Provider {
	case "", "github", "gitlab", "gitea":
	default:
		errs = append(errs, fmt.Sprintf("status.provider: unknown provider %q (supported: github, gitlab, gitea)", cfg.Status.Provider))
	}

	if cfg.Parallelism < 0 {
		errs = append(errs, "parallelism: must be >= 0")
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return warnings, nil
}
