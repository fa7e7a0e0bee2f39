// Package version holds build metadata injected with -ldflags.
package version

import "log/slog"

var (
	// Version is the semantic version (set via ldflags)
	Version = "v0.0.0-dev"

	// GitCommit is the git commit hash (set via ldflags)
	GitCommit = "unknown"

	// BuildTime is the build timestamp (set via ldflags)
	BuildTime = "unknown"
)

// Info returns a one-line version string for `quickrizz version`.
func Info() string {
	return "quickrizz " + Version + " (" + GitCommit + ") built at " + BuildTime
}

// LogAttrs returns the build metadata as a slog group for the startup line.
func LogAttrs() slog.Attr {
	return slog.Group("build",
		slog.String("version", Version),
		slog.String("commit", GitCommit),
		slog.String("built", BuildTime),
	)
}
