// Package version holds the pose aligner's build information, printed by
// the -version flag and logged at startup.
package version

// Set with -ldflags "-X pose-aligner/internal/version.Version=...".
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
