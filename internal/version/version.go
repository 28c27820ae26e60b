// Package version holds build metadata injected at compile time.
package version

import (
	"fmt"
	"runtime"
)

// Build information set by -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// FullVersion returns the full version string including git commit and build time.
func FullVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s)", Version, GitCommit, BuildTime, GoVersion)
}

// UserAgent returns a string suitable for an HTTP User-Agent header when
// ironlayer calls out to a warehouse or git collaborator.
func UserAgent() string {
	return fmt.Sprintf("ironlayer/%s", Version)
}
