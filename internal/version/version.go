// Package version holds the build identity of henry.
package version

import "fmt"

// Set with -ldflags "-X henry/internal/version.Version=1.0.0 -X henry/internal/version.Commit=abc123".
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

const shortCommit = 7

// Info returns the version, followed by the abbreviated commit when the build
// recorded one.
func Info() string {
	if Commit == "unknown" || len(Commit) <= shortCommit {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit[:shortCommit])
}

// Full returns the banner printed by the version command.
func Full() string {
	return fmt.Sprintf("henry version %s\nCommit: %s\nBuilt: %s", Version, Commit, BuildDate)
}
