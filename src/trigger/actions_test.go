package trigger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		body string
		want Event
	}{
		{
			name: "push branch",
			kind: Push,
			body: `{"ref":"refs/heads/main","after":"abc123"}`,
			want: Event{Kind: Push, Branch: "main", Commit: "abc123"},
		},
		{
			name: "push tag",
			kind: Push,
			body: `{"ref":"refs/tags/v1.0.0","after":"def456"}`,
			want: Event{Kind: Push, Tag: "v1.0.0", Commit: "def456"},
		},
		{
			name: "pull request",
			kind: PullRequest,
			body: `{"action":"opened","number":3,"pull_request":{"base":{"ref":"main"},"head":{"ref":"feature/x","sha":"deadbeef"}}}`,
			want: Event{Kind: PullRequest, Branch: "main", HeadBranch: "feature/x", PR: 3, Commit: "deadbeef"},
		},
		{
			name: "create tag",
			kind: Create,
			body: `{"ref":"v0.2.0","ref_type":"tag"}`,
			want: Event{Kind: Create, Tag: "v0.2.0"},
		},
		{
			name: "create branch",
			kind: Create,
			body: `{"ref":"main","ref_type":"branch"}`,
			want: Event{Kind: Create, Branch: "main"},
		},
		{
			name: "dispatch",
			kind: WorkflowDispatch,
			body: `{"ref":"refs/heads/dev","inputs":{}}`,
			want: Event{Kind: WorkflowDispatch, Branch: "dev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload(tt.kind, []byte(tt.body))
			if err != nil {
				t.Fatalf("ParsePayload: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParsePayloadErrors(t *testing.T) {
	if _, err := ParsePayload(Push, []byte("{")); err == nil {
		t.Error("expected decode error")
	}
	if _, err := ParsePayload(Create, []byte(`{"ref":"x","ref_type":"repository"}`)); err == nil {
		t.Error("expected ref_type error")
	}
}

func TestFromActionsEnv(t *testing.T) {
	payload := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(payload, []byte(`{"ref":"refs/heads/main","after":""}`), 0o644); err != nil {
		t.Fatal(err)
	}

	env := map[string]string{
		"GITHUB_EVENT_NAME": "push",
		"GITHUB_EVENT_PATH": payload,
		"GITHUB_SHA":        "cafebabe",
		"GITHUB_ACTOR":      "octocat",
	}
	ev, ok, err := FromActionsEnv(func(k string) string { return env[k] })
	if err != nil || !ok {
		t.Fatalf("FromActionsEnv: ok=%v err=%v", ok, err)
	}
	want := Event{Kind: Push, Branch: "main", Commit: "cafebabe", Actor: "octocat"}
	if ev != want {
		t.Errorf("got %+v, want %+v", ev, want)
	}
}

func TestFromActionsEnvWithoutPayload(t *testing.T) {
	env := map[string]string{
		"GITHUB_EVENT_NAME": "pull_request",
		"GITHUB_REF":        "refs/pull/9/merge",
		"GITHUB_BASE_REF":   "main",
		"GITHUB_HEAD_REF":   "feature-x",
	}
	ev, ok, err := FromActionsEnv(func(k string) string { return env[k] })
	if err != nil || !ok {
		t.Fatalf("FromActionsEnv: ok=%v err=%v", ok, err)
	}
	if ev.Kind != PullRequest || ev.Branch != "main" || ev.HeadBranch != "feature-x" || ev.PR != 9 {
		t.Errorf("got %+v", ev)
	}
}

func TestFromActionsEnvPullRequestPayload(t *testing.T) {
	payload := filepath.Join(t.TempDir(), "event.json")
	body := `{"number":12,"pull_request":{"base":{"ref":"main"},"head":{"ref":"feature-x","sha":"deadbeef"}}}`
	if err := os.WriteFile(payload, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{
		"GITHUB_EVENT_NAME": "pull_request",
		"GITHUB_EVENT_PATH": payload,
		"GITHUB_SHA":        "mergecommit",
	}
	ev, _, err := FromActionsEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}
	want := Event{Kind: PullRequest, Branch: "main", HeadBranch: "feature-x", PR: 12, Commit: "deadbeef"}
	if ev != want {
		t.Errorf("got %+v, want %+v", ev, want)
	}
	if ev.SourceBranch() != "feature-x" {
		t.Errorf("SourceBranch = %q", ev.SourceBranch())
	}
}

func TestFromActionsEnvOutsideActions(t *testing.T) {
	_, ok, err := FromActionsEnv(func(string) string { return "" })
	if ok || err != nil {
		t.Errorf("ok=%v err=%v, want false/nil", ok, err)
	}
}

func TestFromActionsEnvUnknownKind(t *testing.T) {
	env := map[string]string{"GITHUB_EVENT_NAME": "schedule"}
	ev, ok, err := FromActionsEnv(func(k string) string { return env[k] })
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if ev.Kind != "schedule" {
		t.Errorf("kind = %q", ev.Kind)
	}
}
