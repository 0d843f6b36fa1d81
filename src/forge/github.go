package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sofmeright/qualitygate/src/version"
)

// GitHubForge implements the Forge interface for GitHub and GitHub Enterprise.
type GitHubForge struct {
	BaseURL string // "https://api.github.com" or "https://ghes.example.com/api/v3"
	Token   string
	Owner   string
	Repo    string
}

// NewGitHub creates a GitHub forge client.
// Token is resolved from env: GITHUB_TOKEN, GH_TOKEN.
// Owner/Repo is resolved from env: GITHUB_REPOSITORY (owner/repo).
func NewGitHub(baseURL string, getenv func(string) string) *GitHubForge {
	owner, repo := splitRepo(getenv("GITHUB_REPOSITORY"))

	apiBase := "https://api.github.com"
	switch {
	case strings.Contains(baseURL, "api.github.com"), strings.HasSuffix(strings.TrimRight(baseURL, "/"), "/api/v3"):
		apiBase = strings.TrimRight(baseURL, "/")
	case baseURL != "" && !strings.Contains(baseURL, "github.com"):
		// GitHub Enterprise Server
		apiBase = strings.TrimRight(baseURL, "/") + "/api/v3"
	}

	return &GitHubForge{
		BaseURL: apiBase,
		Token:   firstEnv(getenv, "GITHUB_TOKEN", "GH_TOKEN"),
		Owner:   owner,
		Repo:    repo,
	}
}

func (g *GitHubForge) Provider() Provider { return GitHub }

// SetCommitStatus posts to /repos/{owner}/{repo}/statuses/{sha}.
// GitHub has no running state; running is reported as pending.
func (g *GitHubForge) SetCommitStatus(ctx context.Context, s Status) error {
	state := string(s.State)
	if s.State == StateRunning {
		state = string(StatePending)
	}
	payload := map[string]string{
		"state":       state,
		"context":     s.Context,
		"description": truncate(s.Description, 140),
	}
	if s.TargetURL != "" {
		payload["target_url"] = s.TargetURL
	}
	url := fmt.Sprintf("%s/repos/%s/%s/statuses/%s", g.BaseURL, g.Owner, g.Repo, s.SHA)
	return g.doJSON(ctx, http.MethodPost, url, payload)
}

func (g *GitHubForge) doJSON(ctx context.Context, method, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("GitHub API %s %s: %d %s", method, url, resp.StatusCode, string(respBody))
	}
	return nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
