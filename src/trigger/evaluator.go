package trigger

import (
	"fmt"

	"github.com/sofmeright/qualitygate/src/config"
)

// Decision is the outcome of evaluating one event.
type Decision struct {
	Run    bool
	Jobs   []string
	Reason string
}

// Evaluator matches events against the configured filters.
// It has no side effects.
type Evaluator struct {
	cfg  config.TriggerConfig
	jobs []string
}

// NewEvaluator creates an evaluator that instantiates jobs on every match.
func NewEvaluator(cfg config.TriggerConfig, jobs []string) *Evaluator {
	return &Evaluator{cfg: cfg, jobs: append([]string(nil), jobs...)}
}

// Evaluate returns whether the event starts a run. Events that match no
// filter produce a zero-job decision and no error.
func (e *Evaluator) Evaluate(ev Event) Decision {
	ok, reason := e.match(ev)
	if !ok {
		return Decision{Reason: reason}
	}
	return Decision{
		Run:    true,
		Jobs:   append([]string(nil), e.jobs...),
		Reason: reason,
	}
}

func (e *Evaluator) match(ev Event) (bool, string) {
	switch ev.Kind {
	case WorkflowDispatch:
		if !e.cfg.WorkflowDispatch {
			return false, "workflow_dispatch not subscribed"
		}
		return true, "manual dispatch"

	case PullRequest:
		return matchRef(e.cfg.PullRequest, ev, "base branch")

	case Push:
		return matchRef(e.cfg.Push, ev, "branch")

	case Create:
		return matchRef(e.cfg.Create, ev, "branch")

	default:
		return false, fmt.Sprintf("unsupported event kind %q", ev.Kind)
	}
}

func matchRef(f *config.EventFilter, ev Event, what string) (bool, string) {
	if f == nil {
		return false, fmt.Sprintf("%s not subscribed", ev.Kind)
	}
	if ev.Tag != "" {
		if f.MatchTag(ev.Tag) {
			return true, fmt.Sprintf("%s of tag %q", ev.Kind, ev.Tag)
		}
		return false, fmt.Sprintf("tag %q does not match %s filter", ev.Tag, ev.Kind)
	}
	if f.MatchBranch(ev.Branch) {
		return true, fmt.Sprintf("%s on %s %q", ev.Kind, what, ev.Branch)
	}
	return false, fmt.Sprintf("%s %q does not match %s filter", what, ev.Branch, ev.Kind)
}
