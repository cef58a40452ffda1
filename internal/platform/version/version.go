// Package version reports what build of the voting service is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/ARRNAV26/Voting-System/internal/platform/version.Version=v1.2.0".
// Commit and BuildTime fall back to the VCS stamp that `go build` embeds.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

var (
	vcsOnce sync.Once
	vcs     vcsStamp
)

type vcsStamp struct {
	revision string
	time     string
	modified bool
}

func readVCSStamp() vcsStamp {
	vcsOnce.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		vcs = stampFromSettings(bi.Settings)
	})
	return vcs
}

func stampFromSettings(settings []debug.BuildSetting) vcsStamp {
	var s vcsStamp
	for _, kv := range settings {
		switch kv.Key {
		case "vcs.revision":
			s.revision = kv.Value
		case "vcs.time":
			s.time = kv.Value
		case "vcs.modified":
			s.modified = kv.Value == "true"
		}
	}
	return s
}

func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	stamp := readVCSStamp()
	if info.Commit == "unknown" && stamp.revision != "" {
		info.Commit = shortRevision(stamp.revision)
		info.Modified = stamp.modified
	}
	if info.BuildTime == "unknown" && stamp.time != "" {
		info.BuildTime = stamp.time
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func (i Info) String() string {
	commit := i.Commit
	if i.Modified {
		commit += "+dirty"
	}
	return fmt.Sprintf("%s (commit %s, built %s, %s)", i.Version, commit, i.BuildTime, i.GoVersion)
}
