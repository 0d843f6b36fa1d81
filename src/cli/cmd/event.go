package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/qualitygate/src/trigger"
)

// eventFlags select the event a command acts on. Without flags the event
// comes from the GitHub Actions environment when present, otherwise it is
// a manual dispatch of the checked-out HEAD.
type eventFlags struct {
	kind    string
	ref     string
	sha     string
	fromEnv bool
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "event", "", "event kind: workflow_dispatch, pull_request, push, create")
	cmd.Flags().StringVar(&f.ref, "ref", "", "branch or tag ref (refs/heads/x, refs/tags/x or a bare branch); base branch for pull_request")
	cmd.Flags().StringVar(&f.sha, "sha", "", "commit to run (default: HEAD of the ref)")
	cmd.Flags().BoolVar(&f.fromEnv, "from-env", false, "read the event from the GitHub Actions environment")
}

func (f *eventFlags) resolve(dir string) (trigger.Event, error) {
	if f.fromEnv || (f.kind == "" && os.Getenv("GITHUB_EVENT_NAME") != "") {
		ev, ok, err := trigger.FromActionsEnv(os.Getenv)
		if err != nil {
			return ev, err
		}
		if !ok {
			return ev, fmt.Errorf("--from-env: GITHUB_EVENT_NAME is not set")
		}
		return ev, nil
	}

	if f.kind == "" {
		ev, err := trigger.FromRepository(dir)
		if err != nil {
			return ev, err
		}
		if f.sha != "" {
			ev.Commit = f.sha
		}
		return ev, nil
	}

	kind, err := trigger.ParseKind(f.kind)
	if err != nil {
		return trigger.Event{}, err
	}
	ev := trigger.Event{Kind: kind, Commit: f.sha}
	ev.Branch, ev.Tag = trigger.ParseRef(f.ref)
	if ev.Commit == "" {
		if head, err := trigger.FromRepository(dir); err == nil {
			ev.Commit = head.Commit
		}
	}
	return ev, nil
}
