// Package misc keeps build information for the program.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "csspipe"

// Set by the linker: -X csspipe/misc.version=... -X csspipe/misc.gitHash=...
var (
	version = ""
	gitHash = ""
)

var buildInfo = sync.OnceValues(func() (string, string) {
	ver, hash := version, gitHash
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ver, hash
	}
	if len(ver) == 0 && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		ver = bi.Main.Version
	}
	if len(hash) == 0 {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				hash = s.Value
				if len(hash) > 12 {
					hash = hash[:12]
				}
				break
			}
		}
	}
	return ver, hash
})

// GetAppName returns program name.
func GetAppName() string {
	return appName
}

// GetVersion returns program version, "dev" when unknown.
func GetVersion() string {
	if ver, _ := buildInfo(); len(ver) > 0 {
		return ver
	}
	return "dev"
}

// GetGitHash returns short commit hash the program was built from.
func GetGitHash() string {
	if _, hash := buildInfo(); len(hash) > 0 {
		return hash
	}
	return "unknown"
}
