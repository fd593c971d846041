package apkmerge

import "strings"

var (
	// VersionCore is the core version of apkmerge,
	// overridden at build time with -ldflags.
	VersionCore = "0.1.0"
	// Prerelease is the prerelease portion of the
	// version of apkmerge, if any.
	Prerelease = ""
	// Build is the build metadata of the version of apkmerge, if any.
	Build = ""
)

// SemVer returns the semantic version of apkmerge.
func SemVer() string {
	var (
		semver = VersionCore
		pre    = strings.TrimPrefix(Prerelease, "-")
		build  = strings.TrimPrefix(Build, "+")
	)

	if pre != "" {
		semver += "-" + pre
	}

	if build != "" {
		semver += "+" + build
	}

	return semver
}
