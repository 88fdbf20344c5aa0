// Package version derives the running binary's version from build
// metadata, preferring an -ldflags override, then the VCS revision the Go
// toolchain embeds, then a "dev" fallback for test binaries and non-git
// builds.
package version

import "runtime/debug"

// AppName appears in version strings, health payloads, and startup logs.
const AppName = "maskd"

// commitOverride is injected with -ldflags for container builds that
// compile outside a git checkout:
//
//	go build -ldflags "-X github.com/privacyops/maskd/pkg/version.commitOverride=$GIT_SHA"
var commitOverride string

// GitCommit is the short (8 character) commit hash of this build, or
// "dev" when no revision is available.
var GitCommit = resolveCommit()

func resolveCommit() string {
	if commitOverride != "" {
		return shorten(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shorten(s.Value)
			}
		}
	}
	return "dev"
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "maskd/<commit>" for health payloads and startup logs.
func Full() string {
	return AppName + "/" + GitCommit
}
