// Package forge publishes per-job commit statuses to the git forge hosting
// the repository (GitHub, GitLab, Gitea/Forgejo), so each job shows up as
// its own check on the commit or pull request.
package forge

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Provider identifies a git forge platform.
type Provider string

const (
	GitLab  Provider = "gitlab"
	GitHub  Provider = "github"
	Gitea   Provider = "gitea"
	Unknown Provider = "unknown"
)

// State is a commit status state in forge-neutral terms.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailure State = "failure"
	StateError   State = "error"
)

// Status is one commit status.
type Status struct {
	SHA         string
	State       State
	Context     string // e.g. "qualitygate/Test-full"
	Description string
	TargetURL   string
}

// Forge is the interface every platform implements.
type Forge interface {
	// Provider returns which platform this forge represents.
	Provider() Provider

	// SetCommitStatus creates or replaces the status for s.Context on s.SHA.
	SetCommitStatus(ctx context.Context, s Status) error
}

// New returns the client for provider. Credentials and the repository
// are resolved from the CI environment through getenv.
func New(provider Provider, baseURL string, getenv func(string) string) (Forge, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	switch provider {
	case GitHub:
		return NewGitHub(baseURL, getenv), nil
	case GitLab:
		return NewGitLab(baseURL, getenv), nil
	case Gitea:
		return NewGitea(baseURL, getenv), nil
	default:
		return nil, fmt.Errorf("unsupported forge provider %q", provider)
	}
}

// splitRepo splits "owner/repo".
func splitRepo(s string) (owner, repo string) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok {
		return "", ""
	}
	return owner, repo
}

func firstEnv(getenv func(string) string, names ...string) string {
	for _, n := range names {
		if v := getenv(n); v != "" {
			return v
		}
	}
	return ""
}

var httpClient = http.DefaultClient
