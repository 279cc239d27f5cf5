// Package version exposes the build metadata stamped into the stacfan binary.
package version

import (
	"fmt"
	"runtime"
)

// Stamped through -ldflags, e.g.
// -X github.com/geoplex/stacfan/pkg/version.Version=$(VERSION).
// A plain `go build` leaves the defaults in place.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Build carries the stamped metadata plus the toolchain and platform
// the binary was compiled for.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Current reports the build metadata of the running binary.
func Current() Build {
	return Build{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String is the one-line form printed by `stacfan version`.
func String() string {
	return fmt.Sprintf("stacfan %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, runtime.Version())
}

// Short returns the bare version, used by cobra's --version template.
func Short() string { return Version }
