package config

// EventFilter restricts an event kind to matching branches or tags.
//
// Patterns are globs: "*" stays within one path segment, "**" spans
// segments, and a leading "!" excludes. A filter with neither list set
// matches every ref of its kind.
type EventFilter struct {
	Branches []string `yaml:"branches,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

// TriggerConfig lists the repository events that start a pipeline run.
// A nil filter means the event kind is not subscribed.
type TriggerConfig struct {
	WorkflowDispatch bool         `yaml:"workflow_dispatch"`
	PullRequest      *EventFilter `yaml:"pull_request,omitempty"`
	Push             *EventFilter `yaml:"push,omitempty"`
	Create           *EventFilter `yaml:"create,omitempty"`
}

// DefaultTriggerConfig subscribes to manual runs, pull requests and pushes
// against main, and creation of main or any tag.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		WorkflowDispatch: true,
		PullRequest:      &EventFilter{Branches: []string{"main"}},
		Push:             &EventFilter{Branches: []string{"main"}},
		Create:           &EventFilter{Branches: []string{"main"}, Tags: []string{"**"}},
	}
}

// MatchBranch reports whether a branch passes the filter.
func (f *EventFilter) MatchBranch(branch string) bool {
	if f == nil {
		return false
	}
	if len(f.Branches) == 0 {
		// A tag-only filter does not admit branches.
		return len(f.Tags) == 0
	}
	return MatchRefPatterns(f.Branches, branch)
}

// MatchTag reports whether a tag passes the filter.
func (f *EventFilter) MatchTag(tag string) bool {
	if f == nil {
		return false
	}
	if len(f.Tags) == 0 {
		return len(f.Branches) == 0
	}
	return MatchRefPatterns(f.Tags, tag)
}
