package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

func IsGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// Collapsible log groups. GitHub Actions (and Gitea Actions, which speaks
// the same workflow commands) use ::group::; GitLab uses section markers.
// Outside CI these write nothing.

func GroupStart(w io.Writer, id, name string) {
	switch {
	case IsGitHubActions():
		fmt.Fprintf(w, "::group::%s\n", name)
	case IsGitLabCI():
		fmt.Fprintf(w, "\033[0Ksection_start:%d:%s[collapsed=true]\r\033[0K%s\n", time.Now().Unix(), sectionID(id), name)
	}
}

func GroupEnd(w io.Writer, id string) {
	switch {
	case IsGitHubActions():
		fmt.Fprintln(w, "::endgroup::")
	case IsGitLabCI():
		fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", time.Now().Unix(), sectionID(id))
	}
}

// Annotate emits a GitHub error annotation so failed jobs surface on the
// run summary page. Other environments get a plain line.
func Annotate(w io.Writer, title, message string) {
	if IsGitHubActions() {
		fmt.Fprintf(w, "::error title=%s::%s\n", escapeCommand(title), escapeCommand(message))
		return
	}
	fmt.Fprintf(w, "error: %s: %s\n", title, message)
}

// sectionID keeps GitLab section names to [a-z0-9_.-].
func sectionID(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func escapeCommand(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C").Replace(s)
}

// CIContext collects the run context from GitHub Actions or GitLab CI
// variables for ContextBlock.
func CIContext(getenv func(string) string) []KV {
	var kv []KV
	add := func(key string, names ...string) {
		for _, n := range names {
			if v := getenv(n); v != "" {
				kv = append(kv, KV{Key: key, Value: v})
				return
			}
		}
	}
	add("event", "GITHUB_EVENT_NAME", "CI_PIPELINE_SOURCE")
	add("ref", "GITHUB_REF_NAME", "CI_COMMIT_REF_NAME")
	if sha := firstNonEmpty(getenv("GITHUB_SHA"), getenv("CI_COMMIT_SHA")); sha != "" {
		if len(sha) > 8 {
			sha = sha[:8]
		}
		kv = append(kv, KV{Key: "sha", Value: sha})
	}
	add("run", "GITHUB_RUN_ID", "CI_PIPELINE_ID")
	add("runner", "RUNNER_NAME", "CI_RUNNER_DESCRIPTION")
	return kv
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
