// Package version carries the economyd build identity, stamped at build
// time via ldflags:
//
//	go build -ldflags "-X github.com/Vonix-Network/VonixCore-sub003/internal/version.Version=1.0.0 \
//	                   -X github.com/Vonix-Network/VonixCore-sub003/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/Vonix-Network/VonixCore-sub003/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	// Version is the semantic version, "dev" for unstamped builds.
	Version = "dev"

	// Commit is the short git commit hash.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp in ISO 8601.
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// Attrs returns the build identity as alternating slog key-value pairs.
func Attrs() []any {
	return []any{"version", Version, "commit", Commit, "build_time", BuildTime}
}
