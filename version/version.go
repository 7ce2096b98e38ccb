package version

import (
	"fmt"
	"runtime"
)

// Build metadata, overridden at link time:
//
//	go build -ldflags "-X github.com/dajtuba/constructosaurus-sub001/version.GitRelease=v0.3.0 ..."
var (
	// GitRelease is the release tag the binary was built from.
	GitRelease = "dev"

	// GitCommit is the git commit hash the binary was built from.
	GitCommit = "unknown"

	// GitCommitDate is the commit date of GitCommit.
	GitCommitDate = "unknown"

	// GoInfo describes the Go toolchain and platform.
	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)
