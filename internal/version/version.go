// Package version carries build-time version information, stamped via
// ldflags at release time:
//
//	go build -ldflags "-X github.com/tradewatch/posdeck/internal/version.Version=$(git describe --tags) \
//	                   -X github.com/tradewatch/posdeck/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// Commit is the short git hash the binary was built from.
	Commit = "unknown"
)

// String renders the version for startup logs.
func String() string {
	return Version + " (" + Commit + ")"
}
