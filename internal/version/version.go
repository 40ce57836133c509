// Package version reports the build of the oscwave tools
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set with -ldflags "-X oscwave/internal/version.Version=..."
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the running binary
func Get() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// Short is the version with an abbreviated commit, e.g. 0.1.0-1a2b3c4
func (b BuildInfo) Short() string {
	if b.GitCommit == "unknown" || b.GitCommit == "" {
		return b.Version
	}
	commit := b.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return b.Version + "-" + commit
}

// Banner is the multi-line text printed by --version
func (b BuildInfo) Banner(appName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s version %s", appName, b.Short())
	if b.BuildDate != "unknown" {
		fmt.Fprintf(&sb, "\nBuilt: %s", b.BuildDate)
	}
	fmt.Fprintf(&sb, "\nGo: %s\nPlatform: %s", b.GoVersion, b.Platform)
	return sb.String()
}
