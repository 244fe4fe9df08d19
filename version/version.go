package version

import "fmt"

// set by the build via -ldflags "-X ..."
//
//nolint:gochecknoglobals // by design
var (
	Version     = "dev"
	GitCommit   = "none"
	BuildDate   = "unknown"
	FullVersion = fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
)
