package forge

import (
	"net/url"
	"strings"
)

// DetectProvider determines the forge platform from a git remote URL.
func DetectProvider(remoteURL string) Provider {
	lower := strings.ToLower(remoteURL)

	switch {
	case strings.Contains(lower, "github.com"):
		return GitHub
	case strings.Contains(lower, "gitlab"):
		return GitLab
	case strings.Contains(lower, "gitea") || strings.Contains(lower, "forgejo") || strings.Contains(lower, "codeberg"):
		return Gitea
	default:
		return Unknown
	}
}

// DetectFromEnv identifies the forge from CI environment variables when
// the remote URL carries no hint.
func DetectFromEnv(getenv func(string) string) Provider {
	switch {
	case getenv("GITEA_ACTIONS") == "true" || getenv("CI_FORGE_TYPE") == "gitea" || getenv("CI_FORGE_TYPE") == "forgejo":
		return Gitea
	case getenv("GITHUB_ACTIONS") == "true":
		return GitHub
	case getenv("GITLAB_CI") == "true":
		return GitLab
	default:
		return Unknown
	}
}

// BaseURL extracts the forge base URL from a git remote URL.
// Handles SSH (git@host:path, ssh://git@host:port/path) and HTTP(S).
func BaseURL(remoteURL string) string {
	raw := strings.TrimSpace(remoteURL)

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return raw
		}
		switch u.Scheme {
		case "http", "https":
			return u.Scheme + "://" + u.Host
		default:
			// ssh ports are not web ports
			return "https://" + u.Hostname()
		}
	}

	// scp-like: git@host:org/repo.git
	if _, after, found := strings.Cut(raw, "@"); found {
		host, _, _ := strings.Cut(after, ":")
		return "https://" + host
	}
	return raw
}
