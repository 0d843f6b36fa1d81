// Package trigger decides whether a repository event starts a pipeline run.
package trigger

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the repository event type.
type Kind string

const (
	WorkflowDispatch Kind = "workflow_dispatch"
	PullRequest      Kind = "pull_request"
	Push             Kind = "push"
	Create           Kind = "create"
)

// ParseKind validates an event name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(s)); k {
	case WorkflowDispatch, PullRequest, Push, Create:
		return k, nil
	case "dispatch", "manual":
		return WorkflowDispatch, nil
	default:
		return "", fmt.Errorf("unknown event kind %q", s)
	}
}

// Event is the subset of a repository event the evaluator looks at.
//
// Branch is the branch the event targets: the base branch for a pull
// request, the pushed or created branch otherwise. Tag is set instead of
// Branch when the ref is a tag. For pull requests HeadBranch and Commit
// name the proposed change and PR is the request number.
type Event struct {
	Kind       Kind
	Branch     string
	Tag        string
	HeadBranch string
	PR         int
	Commit     string
	Actor      string
}

// SourceBranch is the branch holding the code under test: the head
// branch of a pull request, Branch otherwise.
func (e Event) SourceBranch() string {
	if e.HeadBranch != "" {
		return e.HeadBranch
	}
	return e.Branch
}

// Ref renders the event's ref for display.
func (e Event) Ref() string {
	switch {
	case e.Tag != "":
		return "refs/tags/" + e.Tag
	case e.Branch != "":
		return "refs/heads/" + e.Branch
	default:
		return ""
	}
}

func (e Event) String() string {
	ref := e.Ref()
	if ref == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s %s", e.Kind, ref)
}

// PullNumber extracts N from refs/pull/N/merge or refs/pull/N/head.
func PullNumber(ref string) int {
	rest, ok := strings.CutPrefix(ref, "refs/pull/")
	if !ok {
		return 0
	}
	num, _, _ := strings.Cut(rest, "/")
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseRef splits a fully-qualified git ref into a branch or tag name.
// Bare names are treated as branches.
func ParseRef(ref string) (branch, tag string) {
	switch {
	case strings.HasPrefix(ref, "refs/heads/"):
		return strings.TrimPrefix(ref, "refs/heads/"), ""
	case strings.HasPrefix(ref, "refs/tags/"):
		return "", strings.TrimPrefix(ref, "refs/tags/")
	case strings.HasPrefix(ref, "refs/"):
		// refs/pull/N/merge and friends carry no branch name
		return "", ""
	default:
		return ref, ""
	}
}
