package protocol

import (
	"strings"

	"golang.org/x/mod/semver"
)

// BarePasswordVersion is the first peer version that returns a generated
// password as a top level field.
const BarePasswordVersion = "2.7.0"

// Version is the peer version string reported in the handshake, such as
// "2.7.6". Unknown or unparsable versions compare as older than anything.
type Version string

func (v Version) canonical() string {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	s = semver.Canonical(s)
	// Prerelease tags such as "-snapshot" are ignored for comparison.
	return strings.TrimSuffix(s, semver.Prerelease(s))
}

// Valid reports whether v parses as a semantic version.
func (v Version) Valid() bool {
	return v.canonical() != ""
}

// AtLeast reports whether v is min or newer.
func (v Version) AtLeast(min string) bool {
	c := v.canonical()
	if c == "" {
		return false
	}
	return semver.Compare(c, Version(min).canonical()) >= 0
}

// SupportsBarePassword reports whether generate-password replies carry the
// password at the top level.
func (v Version) SupportsBarePassword() bool {
	return v.AtLeast(BarePasswordVersion)
}
