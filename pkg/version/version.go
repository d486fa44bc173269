// Package version reports the build identity of the relay binary.
//
// Release builds inject it with ldflags:
//
//	go build -ldflags "-X github.com/NicolasHaas/sosmeet/pkg/version.tag=v1.0.0
//	  -X github.com/NicolasHaas/sosmeet/pkg/version.commit=abc1234
//	  -X github.com/NicolasHaas/sosmeet/pkg/version.date=2026-01-01"
//
// Without ldflags the VCS stamp recorded by the Go toolchain is used.
package version

import (
	"runtime/debug"
	"sync"
)

var (
	tag    = ""
	commit = "unknown"
	date   = "unknown"
)

var stampOnce sync.Once

// stamp fills commit and date from the embedded build info when ldflags
// left them unset.
func stamp() {
	stampOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "unknown" && len(s.Value) >= 7 {
					commit = s.Value[:7]
				}
			case "vcs.time":
				if date == "unknown" && s.Value != "" {
					date = s.Value
				}
			}
		}
	})
}

// String returns the tag, else the short commit, else "dev".
func String() string {
	stamp()
	if tag != "" {
		return tag
	}
	if commit != "unknown" {
		return commit
	}
	return "dev"
}

// Info is the build identity served on /version.
type Info struct {
	Version string `json:"version"`
	Tag     string `json:"tag,omitempty"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Current returns the Info for this binary.
func Current() Info {
	stamp()
	return Info{Version: String(), Tag: tag, Commit: commit, Date: date}
}
