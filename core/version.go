package core

import "fmt"

// Build information, injected with:
//
//	go build -ldflags "-X digitizer/core.Version=v1.2.0 -X digitizer/core.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo returns e.g. "digitizer v1.2.0 (built 2026-01-15T10:30:00Z, commit abc1234)".
func VersionInfo() string {
	return fmt.Sprintf("digitizer %s (built %s, commit %s)", Version, BuildTime, GitCommit)
}
