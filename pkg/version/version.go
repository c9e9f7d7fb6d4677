// Package version exposes build metadata injected via -ldflags.
package version

// Build metadata. Overridden at link time:
//
//	go build -ldflags "-X github.com/rshade/carbonscope/pkg/version.version=v0.3.0"
//
//nolint:gochecknoglobals // Set by the linker.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// GetVersion returns the semantic version of the binary.
func GetVersion() string {
	return version
}

// GetGitCommit returns the commit the binary was built from.
func GetGitCommit() string {
	return gitCommit
}

// GetBuildDate returns the build timestamp.
func GetBuildDate() string {
	return buildDate
}
