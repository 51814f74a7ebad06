package observe

import (
	"regexp"
	"strings"
)

// Matches "from 1.2.3 to 2.0.0" in dependency-bump PR titles, tolerating a
// leading v and pre-release/build suffixes on the last component.
var bumpPattern = regexp.MustCompile(`from v?(\d+)\.(\d+)\.(\S+) to v?(\d+)\.(\d+)\.(\S+)`)

// Dependency-update bot identities recognized as dependency-bot authors.
var dependencyBots = map[string]bool{
	"dependabot[bot]":         true,
	"dependabot-preview[bot]": true,
	"renovate[bot]":           true,
	"renovate-bot":            true,
	"greenkeeper[bot]":        true,
}

// ParseVersionBump classifies the version change in a PR title. Titles
// without a "from X.Y.Z to A.B.C" span classify as unknown.
func ParseVersionBump(title string) VersionBump {
	match := bumpPattern.FindStringSubmatch(title)
	if match == nil {
		return BumpUnknown
	}
	fromMajor, fromMinor := match[1], match[2]
	toMajor, toMinor := match[4], match[5]

	switch {
	case fromMajor != toMajor:
		return BumpMajor
	case fromMinor != toMinor:
		return BumpMinor
	default:
		return BumpPatch
	}
}

// IsDependencyBot reports whether the author is a known dependency-update
// bot identity.
func IsDependencyBot(author string) bool {
	return dependencyBots[strings.ToLower(author)]
}
