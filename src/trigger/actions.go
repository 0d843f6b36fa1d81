package trigger

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/webhooks/v6/github"
)

// ParsePayload decodes a GitHub webhook body for the given event kind.
// Manual dispatch payloads carry only the ref the run was started on.
func ParsePayload(kind Kind, data []byte) (Event, error) {
	ev := Event{Kind: kind}

	switch kind {
	case Push:
		var p github.PushPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return ev, fmt.Errorf("decoding push payload: %w", err)
		}
		ev.Branch, ev.Tag = ParseRef(p.Ref)
		ev.Commit = p.After

	case PullRequest:
		var p github.PullRequestPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return ev, fmt.Errorf("decoding pull_request payload: %w", err)
		}
		ev.Branch = p.PullRequest.Base.Ref
		ev.HeadBranch = p.PullRequest.Head.Ref
		ev.Commit = p.PullRequest.Head.Sha
		ev.PR = int(p.Number)

	case Create:
		var p github.CreatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return ev, fmt.Errorf("decoding create payload: %w", err)
		}
		switch p.RefType {
		case "tag":
			ev.Tag = p.Ref
		case "branch":
			ev.Branch = p.Ref
		default:
			return ev, fmt.Errorf("create payload: unknown ref_type %q", p.RefType)
		}

	case WorkflowDispatch:
		var p struct {
			Ref string `json:"ref"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return ev, fmt.Errorf("decoding workflow_dispatch payload: %w", err)
		}
		ev.Branch, ev.Tag = ParseRef(p.Ref)

	default:
		return ev, fmt.Errorf("unsupported event kind %q", kind)
	}

	return ev, nil
}

// FromActionsEnv builds an event from the GitHub Actions runner environment.
// Returns ok=false when not running under Actions.
func FromActionsEnv(getenv func(string) string) (ev Event, ok bool, err error) {
	name := getenv("GITHUB_EVENT_NAME")
	if name == "" {
		return Event{}, false, nil
	}

	kind, err := ParseKind(name)
	if err != nil {
		// Unknown event kinds are not an error for the caller: they simply
		// never match a filter.
		return Event{Kind: Kind(name)}, true, nil
	}

	if path := getenv("GITHUB_EVENT_PATH"); path != "" {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return Event{}, true, fmt.Errorf("reading event payload: %w", readErr)
		}
		ev, err = ParsePayload(kind, data)
		if err != nil {
			return Event{}, true, err
		}
	} else {
		ev = Event{Kind: kind}
		ev.Branch, ev.Tag = ParseRef(getenv("GITHUB_REF"))
		if kind == PullRequest {
			ev.Branch = getenv("GITHUB_BASE_REF")
			ev.HeadBranch = getenv("GITHUB_HEAD_REF")
			ev.PR = PullNumber(getenv("GITHUB_REF"))
		}
	}

	if ev.Commit == "" {
		ev.Commit = getenv("GITHUB_SHA")
	}
	ev.Actor = getenv("GITHUB_ACTOR")
	return ev, true, nil
}
