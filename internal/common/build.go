package common

import (
	"fmt"
	"runtime/debug"
)

// Version and GitCommit can be set via ldflags at build time
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func GetModuleBuildInfo() (string, string, bool) {
	if Version != "dev" {
		return Version, GitCommit, true
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", "", false
	}

	gitCommit := GitCommit
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			gitCommit = setting.Value
			break
		}
	}

	return info.Main.Version, gitCommit, true
}

// ShortCommit trims a commit hash for display.
func ShortCommit(gitCommit string) string {
	if len(gitCommit) > 8 {
		return gitCommit[:8]
	}
	return gitCommit
}

// UserAgent identifies skypost to the service.
func UserAgent() string {
	version, _, ok := GetModuleBuildInfo()
	if !ok || len(version) == 0 {
		version = Version
	}
	return fmt.Sprintf("skypost/%s", version)
}
