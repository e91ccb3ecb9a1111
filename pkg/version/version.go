// Package version implements the semantic version algebra used throughout
// the image resolver: parsing and comparing concrete versions, and parsing
// and evaluating version specifiers against them.
package version

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// SemanticVersion is a concrete, comparable version: major.minor.patch with
// optional pre-release and build-metadata components.
//
// Comparison follows SemVer 2 precedence: major, then minor, then patch,
// then pre-release identifiers (the absence of a pre-release sorts above
// any pre-release). Build metadata never affects ordering.
type SemanticVersion struct {
	sv *semver.Version
}

// Parse parses a well-formed semantic version string ("1.2.3", "1.2.3-rc.1",
// "1.2.3+build5"). It does not accept the specifier syntax handled by
// ParseSpecifier (carets, bare "X.Y", or the empty string).
func Parse(s string) (SemanticVersion, error) {
	sv, err := semver.StrictNewVersion(s)
	if err != nil {
		return SemanticVersion{}, &ParseError{Input: s, Reason: err.Error()}
	}
	return SemanticVersion{sv: sv}, nil
}

// MustParse is Parse, panicking on error. Intended for fixtures and tests.
func MustParse(s string) SemanticVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// New builds a SemanticVersion directly from its numeric and textual parts.
func New(major, minor, patch uint64, preRelease, buildMetadata string) (SemanticVersion, error) {
	sv, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", major, minor, patch))
	if err != nil {
		return SemanticVersion{}, &ParseError{Reason: err.Error()}
	}
	built, err := sv.SetPrerelease(preRelease)
	if err != nil {
		return SemanticVersion{}, &ParseError{Reason: err.Error()}
	}
	built, err = built.SetMetadata(buildMetadata)
	if err != nil {
		return SemanticVersion{}, &ParseError{Reason: err.Error()}
	}
	return SemanticVersion{sv: &built}, nil
}

// IsZero reports whether v is the zero value (no version set).
func (v SemanticVersion) IsZero() bool { return v.sv == nil }

func (v SemanticVersion) Major() uint64         { return v.sv.Major() }
func (v SemanticVersion) Minor() uint64         { return v.sv.Minor() }
func (v SemanticVersion) Patch() uint64         { return v.sv.Patch() }
func (v SemanticVersion) PreRelease() string    { return v.sv.Prerelease() }
func (v SemanticVersion) BuildMetadata() string { return v.sv.Metadata() }

// IsPreRelease reports whether v carries a pre-release component.
func (v SemanticVersion) IsPreRelease() bool { return v.sv.Prerelease() != "" }

// SameMajor reports whether v and w share the same major version.
func (v SemanticVersion) SameMajor(w SemanticVersion) bool { return v.Major() == w.Major() }

// SameMajorMinor reports whether v and w share the same major and minor version.
func (v SemanticVersion) SameMajorMinor(w SemanticVersion) bool {
	return v.Major() == w.Major() && v.Minor() == w.Minor()
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than w.
// Total order: major, minor, patch, then pre-release per SemVer 2 (absence
// of a pre-release sorts above any pre-release).
func (v SemanticVersion) Compare(w SemanticVersion) int {
	return v.sv.Compare(w.sv)
}

// Less reports whether v sorts strictly before w.
func (v SemanticVersion) Less(w SemanticVersion) bool { return v.Compare(w) < 0 }

// Equal reports whether v and w compare equal.
func (v SemanticVersion) Equal(w SemanticVersion) bool { return v.Compare(w) == 0 }

func (v SemanticVersion) String() string {
	if v.sv == nil {
		return "<none>"
	}
	return v.sv.String()
}

// Descending sorts a slice of SemanticVersion from highest to lowest,
// matching the dependency cache's candidate ordering (§4.3).
func Descending(vs []SemanticVersion) {
	sort.SliceStable(vs, func(i, j int) bool { return vs[j].Less(vs[i]) })
}
