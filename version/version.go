// Package version reports build information of the binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version and Revision are set with -ldflags at release time.
var (
	Version  = "dev"
	Revision = ""
)

type Info struct {
	Binary    string `json:"binary"`
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// Get falls back to the VCS stamp of the build when Revision is unset.
func Get(binary string) Info {
	info := Info{
		Binary:    binary,
		Version:   Version,
		Revision:  Revision,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Revision == "" {
					info.Revision = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	return info
}

func (i Info) String() string {
	rev := i.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev == "" {
		rev = "unknown"
	}
	if i.Modified {
		rev += "-dirty"
	}
	return fmt.Sprintf("%s %s (%s, %s)", i.Binary, i.Version, rev, i.GoVersion)
}
