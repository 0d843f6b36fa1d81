package version

import (
	"fmt"
	"runtime"
)

// These variables are injected at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns a human-readable version string.
func String() string {
	return fmt.Sprintf("qualitygate %s (%s, %s, %s/%s)", Version, Commit, BuildDate, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on every outbound API request.
func UserAgent() string {
	return "qualitygate/" + Version
}
