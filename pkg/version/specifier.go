package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes the five forms a Specifier can take.
type Kind uint8

const (
	// Any matches every version, including pre-releases.
	Any Kind = iota
	// AnyRelease matches any version that is not a pre-release.
	AnyRelease
	// Exact matches only a single, specific version.
	Exact
	// Compatible matches any release (or, if the reference is itself a
	// pre-release, any version) with the same major version that is >= the
	// reference.
	Compatible
	// MinimumCompatible matches any version with the same major and minor
	// version whose patch is >= the reference's.
	MinimumCompatible
)

func (k Kind) String() string {
	switch k {
	case Any:
		return "Any"
	case AnyRelease:
		return "AnyRelease"
	case Exact:
		return "Exact"
	case Compatible:
		return "Compatible"
	case MinimumCompatible:
		return "MinimumCompatible"
	default:
		return "Unknown"
	}
}

// Specifier is a version constraint: one of Any, AnyRelease, Exact(v),
// Compatible(v), or MinimumCompatible(v). The zero Specifier is Any.
type Specifier struct {
	kind Kind
	ref  SemanticVersion
}

// NewAny returns the Any specifier.
func NewAny() Specifier { return Specifier{kind: Any} }

// NewAnyRelease returns the AnyRelease specifier.
func NewAnyRelease() Specifier { return Specifier{kind: AnyRelease} }

// NewExact returns a specifier matching only v.
func NewExact(v SemanticVersion) Specifier { return Specifier{kind: Exact, ref: v} }

// NewCompatible returns a Compatible(v) specifier.
func NewCompatible(v SemanticVersion) Specifier { return Specifier{kind: Compatible, ref: v} }

// NewMinimumCompatible returns a MinimumCompatible(v) specifier.
func NewMinimumCompatible(v SemanticVersion) Specifier {
	return Specifier{kind: MinimumCompatible, ref: v}
}

// Kind reports the specifier's variant.
func (s Specifier) Kind() Kind { return s.kind }

// Reference returns the reference version for Exact/Compatible/MinimumCompatible
// specifiers. It is the zero SemanticVersion for Any/AnyRelease.
func (s Specifier) Reference() SemanticVersion { return s.ref }

// ParseSpecifier parses the following syntax:
//
//	""          -> AnyRelease
//	"*"            -> Any
//	"^X.Y.Z[-pre]" -> Compatible
//	"X.Y.Z[-pre]"  -> Exact
//	"X.Y"          -> MinimumCompatible
func ParseSpecifier(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NewAnyRelease(), nil
	}
	if s == "*" {
		return NewAny(), nil
	}

	if strings.HasPrefix(s, "^") {
		v, err := Parse(strings.TrimPrefix(s, "^"))
		if err != nil {
			return Specifier{}, &ParseError{Input: s, Reason: "invalid compatible specifier: " + err.Error()}
		}
		return NewCompatible(v), nil
	}

	if isMinimumCompatibleForm(s) {
		v, err := parseMajorMinor(s)
		if err != nil {
			return Specifier{}, err
		}
		return NewMinimumCompatible(v), nil
	}

	v, err := Parse(s)
	if err != nil {
		return Specifier{}, &ParseError{Input: s, Reason: "invalid version specifier: " + err.Error()}
	}
	return NewExact(v), nil
}

// isMinimumCompatibleForm reports whether s looks like a bare "X.Y" with no
// patch component (and therefore no pre-release or build metadata, which
// require a patch to attach to).
func isMinimumCompatibleForm(s string) bool {
	if strings.ContainsAny(s, "-+") {
		return false
	}
	return strings.Count(s, ".") == 1
}

func parseMajorMinor(s string) (SemanticVersion, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return SemanticVersion{}, &ParseError{Input: s, Reason: "expected X.Y"}
	}
	major, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return SemanticVersion{}, &ParseError{Input: s, Reason: "invalid major: " + err.Error()}
	}
	minor, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return SemanticVersion{}, &ParseError{Input: s, Reason: "invalid minor: " + err.Error()}
	}
	return New(major, minor, 0, "", "")
}

// IsSatisfiedBy reports whether v is admitted by the specifier.
func (s Specifier) IsSatisfiedBy(v SemanticVersion) bool {
	switch s.kind {
	case Any:
		return true
	case AnyRelease:
		return !v.IsPreRelease()
	case Exact:
		return v.Equal(s.ref)
	case Compatible:
		if !v.SameMajor(s.ref) {
			return false
		}
		if v.Less(s.ref) {
			return false
		}
		return !v.IsPreRelease() || s.ref.IsPreRelease()
	case MinimumCompatible:
		if !v.SameMajorMinor(s.ref) {
			return false
		}
		return v.Patch() >= s.ref.Patch()
	default:
		return false
	}
}

func (s Specifier) String() string {
	switch s.kind {
	case Any:
		return "*"
	case AnyRelease:
		return ""
	case Exact:
		return s.ref.String()
	case Compatible:
		return "^" + s.ref.String()
	case MinimumCompatible:
		return fmt.Sprintf("%d.%d", s.ref.Major(), s.ref.Minor())
	default:
		return "<invalid>"
	}
}

// bound describes the admissible range of a Compatible or MinimumCompatible
// specifier: same major as ref, at or above ref; MinimumCompatible further
// pins the minor to ref's.
type bound struct {
	set      bool
	ref      SemanticVersion
	pinMinor bool // true for MinimumCompatible
}

func (s Specifier) bound() bound {
	switch s.kind {
	case Compatible:
		return bound{set: true, ref: s.ref}
	case MinimumCompatible:
		return bound{set: true, ref: s.ref, pinMinor: true}
	default:
		return bound{}
	}
}

// IsCompatible reports whether there exists some version satisfying both a
// and b. This is used to detect, without enumerating a candidate list,
// whether two specifiers contributed by different dependents on the same
// package can simultaneously be satisfied.
func IsCompatible(a, b Specifier) bool {
	// A single concrete point is the simplest case: the pair is compatible
	// iff that point also satisfies the other specifier.
	if a.kind == Exact {
		return b.IsSatisfiedBy(a.ref)
	}
	if b.kind == Exact {
		return a.IsSatisfiedBy(b.ref)
	}

	ba, bb := a.bound(), b.bound()
	if !ba.set || !bb.set {
		return true
	}
	if ba.ref.Major() != bb.ref.Major() {
		return false
	}

	switch {
	case ba.pinMinor && bb.pinMinor:
		return ba.ref.Minor() == bb.ref.Minor()
	case ba.pinMinor:
		// a's pinned minor must not fall below b's floor minor, or no
		// version can be both >= b.ref and stuck at a's exact minor.
		return ba.ref.Minor() >= bb.ref.Minor()
	case bb.pinMinor:
		return bb.ref.Minor() >= ba.ref.Minor()
	default:
		return true
	}
}

// Intersect computes the most restrictive specifier that admits exactly the
// versions admitted by both a and b, when that can be expressed as a single
// Specifier. ok is false when a and b admit no version in common.
func Intersect(a, b Specifier) (Specifier, bool) {
	if !IsCompatible(a, b) {
		return Specifier{}, false
	}

	if a.kind == Exact {
		return a, true
	}
	if b.kind == Exact {
		return b, true
	}

	isBound := func(k Kind) bool { return k == Compatible || k == MinimumCompatible }

	if a.kind == b.kind && isBound(a.kind) {
		if a.ref.Less(b.ref) {
			return b, true
		}
		return a, true
	}

	if isBound(a.kind) && isBound(b.kind) {
		// One Compatible, one MinimumCompatible, already confirmed
		// compatible: the result pins MinimumCompatible's minor (or the
		// other's, if higher) and keeps whichever reference is the higher
		// floor, since that's the narrower of the two.
		minC, other := a, b
		if minC.kind != MinimumCompatible {
			minC, other = b, a
		}
		if minC.ref.Less(other.ref) {
			return NewMinimumCompatible(other.ref), true
		}
		return minC, true
	}

	rank := func(s Specifier) int {
		switch s.kind {
		case Any:
			return 0
		case AnyRelease:
			return 1
		case Compatible:
			return 2
		case MinimumCompatible:
			return 3
		default:
			return 0
		}
	}

	if rank(a) >= rank(b) {
		return a, true
	}
	return b, true
}
