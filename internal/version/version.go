// Package version exposes the build metadata stamped into the binary.
package version

import (
	"fmt"
	"runtime"
)

// Set at link time via -ldflags; the defaults identify an unstamped
// development build.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Short is the one-line form shown by --version and the version
// command.
func Short() string {
	return fmt.Sprintf("wharf %s (%s) built at %s on %s/%s",
		Version, GitCommit, BuildTime, runtime.GOOS, runtime.GOARCH)
}

// Detail is the multi-line form behind the version command's verbose
// flag.
func Detail() string {
	return fmt.Sprintf(
		"Version:    %s\nGit Commit: %s\nBuilt:      %s\nGo Version: %s\nPlatform:   %s/%s",
		Version, GitCommit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
