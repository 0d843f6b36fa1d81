package trigger

import (
	"testing"

	"github.com/sofmeright/qualitygate/src/config"
)

var allJobs = []string{"Lint", "Test-minimal", "Test-full"}

func TestEvaluateDefaultFilters(t *testing.T) {
	ev := NewEvaluator(config.DefaultTriggerConfig(), allJobs)

	tests := []struct {
		name  string
		event Event
		run   bool
	}{
		{"manual dispatch", Event{Kind: WorkflowDispatch, Branch: "feature/x"}, true},
		{"pr into main", Event{Kind: PullRequest, Branch: "main"}, true},
		{"pr into develop", Event{Kind: PullRequest, Branch: "develop"}, false},
		{"push to main", Event{Kind: Push, Branch: "main"}, true},
		{"push to feature", Event{Kind: Push, Branch: "feature/x"}, false},
		{"push of tag", Event{Kind: Push, Tag: "v1.0.0"}, false},
		{"create main", Event{Kind: Create, Branch: "main"}, true},
		{"create feature branch", Event{Kind: Create, Branch: "feature/x"}, false},
		{"create tag", Event{Kind: Create, Tag: "v0.1.0"}, true},
		{"create nested tag", Event{Kind: Create, Tag: "release/2024/rc1"}, true},
		{"unknown kind", Event{Kind: "issues", Branch: "main"}, false},
		{"empty kind", Event{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ev.Evaluate(tt.event)
			if d.Run != tt.run {
				t.Fatalf("Run = %v, want %v (%s)", d.Run, tt.run, d.Reason)
			}
			if tt.run && len(d.Jobs) != 3 {
				t.Errorf("matched event instantiated %d jobs, want 3", len(d.Jobs))
			}
			if !tt.run && len(d.Jobs) != 0 {
				t.Errorf("non-matching event instantiated %d jobs, want 0", len(d.Jobs))
			}
			if d.Reason == "" {
				t.Error("decision has no reason")
			}
		})
	}
}

func TestEvaluateUnsubscribedKinds(t *testing.T) {
	ev := NewEvaluator(config.TriggerConfig{}, allJobs)
	for _, k := range []Kind{WorkflowDispatch, PullRequest, Push, Create} {
		if d := ev.Evaluate(Event{Kind: k, Branch: "main"}); d.Run {
			t.Errorf("%s ran without a subscription", k)
		}
	}
}

func TestEvaluateDoesNotAliasJobs(t *testing.T) {
	jobs := []string{"Lint"}
	ev := NewEvaluator(config.DefaultTriggerConfig(), jobs)
	d := ev.Evaluate(Event{Kind: WorkflowDispatch})
	d.Jobs[0] = "mutated"
	if again := ev.Evaluate(Event{Kind: WorkflowDispatch}); again.Jobs[0] != "Lint" {
		t.Error("decision jobs alias evaluator state")
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref, branch, tag string
	}{
		{"refs/heads/main", "main", ""},
		{"refs/heads/feature/x", "feature/x", ""},
		{"refs/tags/v1.2.3", "", "v1.2.3"},
		{"refs/pull/7/merge", "", ""},
		{"main", "main", ""},
	}
	for _, tt := range tests {
		b, tg := ParseRef(tt.ref)
		if b != tt.branch || tg != tt.tag {
			t.Errorf("ParseRef(%q) = (%q, %q), want (%q, %q)", tt.ref, b, tg, tt.branch, tt.tag)
		}
	}
}

func TestPullNumber(t *testing.T) {
	tests := map[string]int{
		"refs/pull/9/merge": 9,
		"refs/pull/15/head": 15,
		"refs/heads/main":   0,
		"refs/pull/x/merge": 0,
		"":                  0,
	}
	for ref, want := range tests {
		if got := PullNumber(ref); got != want {
			t.Errorf("PullNumber(%q) = %d, want %d", ref, got, want)
		}
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("manual"); err != nil || k != WorkflowDispatch {
		t.Errorf("ParseKind(manual) = %q, %v", k, err)
	}
	if _, err := ParseKind("release"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
