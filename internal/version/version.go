// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/tradestream/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/tradestream/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/tradestream/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/streamtail
package version

import "runtime/debug"

// Build-time variables (set via ldflags)
var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit hash (short form)
	Commit = "unknown"

	// BuildTime is the UTC build timestamp (ISO 8601)
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// Module returns the main module version recorded by the Go toolchain, used
// when the binary was installed with go install rather than built with ldflags.
func Module() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return Version
	}
	return info.Main.Version
}
