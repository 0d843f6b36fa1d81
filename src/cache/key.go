// Package cache keeps write-once snapshots of the external dataset directory
// so repeated runs avoid re-downloading it.
package cache

import (
	"fmt"
	"runtime"
)

// Key identifies one dataset snapshot.
type Key struct {
	OS      string
	Version string
}

// String renders the key as "<os>-<version>", e.g. "Linux-v3".
func (k Key) String() string {
	return fmt.Sprintf("%s-%s", k.OS, k.Version)
}

// NewKey builds a key for the current runner. An empty os selects RunnerOS.
func NewKey(os, version string) Key {
	if os == "" {
		os = RunnerOS(runtime.GOOS)
	}
	return Key{OS: os, Version: version}
}

// RunnerOS maps a GOOS value to the runner OS name used in cache keys.
func RunnerOS(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	default:
		return goos
	}
}
