package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sofmeright/qualitygate/src/version"
)

// GitLabForge implements the Forge interface for GitLab instances.
type GitLabForge struct {
	BaseURL   string // e.g., "https://gitlab.com"
	Token     string // private token or job token
	ProjectID string // numeric ID or "group/project" path
}

// NewGitLab creates a GitLab forge client.
// Token is resolved from env: GITLAB_TOKEN, CI_JOB_TOKEN.
// ProjectID is resolved from env: CI_PROJECT_ID, CI_PROJECT_PATH.
func NewGitLab(baseURL string, getenv func(string) string) *GitLabForge {
	if baseURL == "" {
		baseURL = firstEnv(getenv, "CI_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}
	return &GitLabForge{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     firstEnv(getenv, "GITLAB_TOKEN", "CI_JOB_TOKEN"),
		ProjectID: firstEnv(getenv, "CI_PROJECT_ID", "CI_PROJECT_PATH"),
	}
}

func (g *GitLabForge) Provider() Provider { return GitLab }

// SetCommitStatus posts to /projects/{id}/statuses/{sha}. The status
// context is sent as the job name.
func (g *GitLabForge) SetCommitStatus(ctx context.Context, s Status) error {
	state := map[State]string{
		StatePending: "pending",
		StateRunning: "running",
		StateSuccess: "success",
		StateFailure: "failed",
		StateError:   "failed",
	}[s.State]
	if state == "" {
		return fmt.Errorf("GitLab: unsupported state %q", s.State)
	}

	payload := map[string]string{
		"state":       state,
		"name":        s.Context,
		"description": truncate(s.Description, 255),
	}
	if s.TargetURL != "" {
		payload["target_url"] = s.TargetURL
	}
	endpoint := fmt.Sprintf("%s/api/v4/projects/%s/statuses/%s", g.BaseURL, url.PathEscape(g.ProjectID), s.SHA)
	return g.doJSON(ctx, http.MethodPost, endpoint, payload)
}

func (g *GitLabForge) doJSON(ctx context.Context, method, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("PRIVATE-TOKEN", g.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("GitLab API %s %s: %d %s", method, url, resp.StatusCode, string(respBody))
	}
	return nil
}
