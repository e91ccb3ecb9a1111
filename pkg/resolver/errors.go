package resolver

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/Keysight/opentap/pkg/arch"
)

// traceError is implemented by resolver errors that can render a richer,
// multi-line explanation (one line per conflict), beyond what Error()
// prints.
type traceError interface {
	traceString() string
}

// PackageNotFound reports that a required name has no candidates anywhere
// in the DependencyGraph. Resolve records it as a ConflictReport's Reason;
// it reaches the caller wrapped in DependencyUnsatisfiable (errors.As
// finds it).
type PackageNotFound struct {
	Name string
}

func (e *PackageNotFound) Error() string {
	return fmt.Sprintf("no repository carries any version of %q", e.Name)
}

// NoCompatibleVariant reports that name has candidates, but none
// compatible with the requested OS/architecture. Like PackageNotFound, it
// is recorded as a ConflictReport's Reason and surfaces inside
// DependencyUnsatisfiable.
type NoCompatibleVariant struct {
	Name       string
	TargetOS   string
	TargetArch arch.CpuArchitecture
}

func (e *NoCompatibleVariant) Error() string {
	return fmt.Sprintf("no variant of %q is compatible with os=%s arch=%s", e.Name, e.TargetOS, e.TargetArch)
}

// ConstraintIntersectionEmpty is returned when two specifiers contributed
// for the same package admit no version in common.
type ConstraintIntersectionEmpty struct {
	Name string
	A, B fmt.Stringer
}

func (e *ConstraintIntersectionEmpty) Error() string {
	return fmt.Sprintf("constraints on %q have no overlap: %s vs %s", e.Name, e.A, e.B)
}

// DependencyUnsatisfiable is the terminal failure returned when the
// backtracking search exhausts every candidate at the root without finding
// a consistent assignment. It aggregates every conflict encountered along
// the way.
type DependencyUnsatisfiable struct {
	Conflicts *multierror.Error
}

func (e *DependencyUnsatisfiable) Error() string {
	return fmt.Sprintf("no assignment satisfies every constraint: %s", e.Conflicts.Error())
}

func (e *DependencyUnsatisfiable) traceString() string {
	var lines string
	for _, err := range e.Conflicts.Errors {
		lines += "  " + err.Error() + "\n"
	}
	return lines
}

func (e *DependencyUnsatisfiable) Unwrap() error { return e.Conflicts }

// Cancelled is returned when the caller's context is done before the
// search completes; it is distinguished from DependencyUnsatisfiable so a
// caller can tell "gave up" from "no solution exists".
type Cancelled struct {
	Err error
}

func (e *Cancelled) Error() string { return fmt.Sprintf("resolve cancelled: %v", e.Err) }
func (e *Cancelled) Unwrap() error { return e.Err }
