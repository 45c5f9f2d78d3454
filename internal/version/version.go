// Package version carries build metadata stamped in via -ldflags.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the build metadata reported by `listend version`.
type Info struct {
	Version string
	Commit  string
	Date    string
	Go      string
}

// Current returns the ldflags metadata, filling unstamped fields from the module
// build info when the binary was built with `go install`.
func Current() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date, Go: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = info.withBuildInfo(bi)
	}
	return info
}

func (i Info) withBuildInfo(bi *debug.BuildInfo) Info {
	if i.Version == "dev" && strings.HasPrefix(bi.Main.Version, "v") {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && i.Commit == "none":
			i.Commit = s.Value[:min(len(s.Value), 12)]
		case s.Key == "vcs.time" && i.Date == "unknown":
			i.Date = s.Value
		}
	}
	return i
}

func (i Info) String() string {
	var b strings.Builder
	b.WriteString("listend ")
	b.WriteString(i.Version)
	b.WriteString(" (commit=" + i.Commit)
	b.WriteString(", date=" + i.Date)
	b.WriteString(", go=" + i.Go + ")")
	return b.String()
}

// String renders the full version line printed by `listend version`.
func String() string {
	return Current().String()
}
