package version

import (
	"runtime"
	"runtime/debug"
)

// version is overridden with -ldflags "-X .../pkg/version.version=v1.2.3".
var version = "dev"

// Version returns the build string set via -ldflags, the module version
// recorded in build info, or "dev".
func Version() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
		return info.Main.Version
	}
	return version
}

// Set overrides the version string; empty values are ignored.
func Set(v string) {
	if v != "" {
		version = v
	}
}

// Build describes the running binary for health endpoints.
type Build struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

// Info collects the version and VCS stamp of the running binary.
func Info() Build {
	b := Build{Version: Version(), GoVersion: runtime.Version()}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.Revision = s.Value
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}
