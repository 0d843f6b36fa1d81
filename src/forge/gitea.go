package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sofmeright/qualitygate/src/version"
)

// GiteaForge implements the Forge interface for Gitea and Forgejo instances.
type GiteaForge struct {
	BaseURL string // e.g., "https://codeberg.org"
	Token   string
	Owner   string
	Repo    string
}

// NewGitea creates a Gitea/Forgejo forge client.
// Token is resolved from env: GITEA_TOKEN, FORGEJO_TOKEN.
// Owner/Repo is resolved from env: CI_REPO (Woodpecker CI) or
// GITHUB_REPOSITORY (Gitea Actions, which uses GitHub-compatible vars).
func NewGitea(baseURL string, getenv func(string) string) *GiteaForge {
	owner, repo := splitRepo(firstEnv(getenv, "CI_REPO", "GITHUB_REPOSITORY"))
	return &GiteaForge{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   firstEnv(getenv, "GITEA_TOKEN", "FORGEJO_TOKEN"),
		Owner:   owner,
		Repo:    repo,
	}
}

func (g *GiteaForge) Provider() Provider { return Gitea }

// SetCommitStatus posts to /api/v1/repos/{owner}/{repo}/statuses/{sha}.
func (g *GiteaForge) SetCommitStatus(ctx context.Context, s Status) error {
	state := string(s.State)
	if s.State == StateRunning {
		state = string(StatePending)
	}
	payload := map[string]string{
		"state":       state,
		"context":     s.Context,
		"description": s.Description,
	}
	if s.TargetURL != "" {
		payload["target_url"] = s.TargetURL
	}
	url := fmt.Sprintf("%s/api/v1/repos/%s/%s/statuses/%s", g.BaseURL, g.Owner, g.Repo, s.SHA)
	return g.doJSON(ctx, http.MethodPost, url, payload)
}

func (g *GiteaForge) doJSON(ctx context.Context, method, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+g.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("Gitea API %s %s: %d %s", method, url, resp.StatusCode, string(respBody))
	}
	return nil
}
