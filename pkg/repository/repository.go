// Package repository implements the repository client: the minimal
// capability the resolver and dependency cache consume to discover package
// versions and their definitions, and the concrete variants that implement
// it.
package repository

import (
	"context"
	"fmt"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/version"
)

// Candidate pairs a version with an opaque handle the Repository can later
// resolve into a full PackageDef via GetDefinition. Keeping the handle
// opaque lets a VCS- or HTTP-backed repository defer the (possibly
// expensive) definition fetch until the solver actually needs it.
type Candidate struct {
	Version version.SemanticVersion
	Handle  DefinitionHandle
}

// DefinitionHandle is repository-specific; only the Repository that issued
// it can resolve it.
type DefinitionHandle interface{}

// Repository is the minimal capability a package source must provide. The
// core never assumes repositories are mutually consistent.
type Repository interface {
	// URL identifies the repository, used for first-wins de-duplication
	// ordering and for ImageIdentifier.SourceRepository.
	URL() string

	// ListVersions returns every version of name this repository carries
	// for the given OS/arch, in no particular order. A repository that
	// cannot tell a version's OS/arch before GetDefinition (VCS) returns
	// every version; the dependency cache filters the definitions.
	ListVersions(ctx context.Context, name, targetOS string, targetArch arch.CpuArchitecture) ([]Candidate, error)

	// GetDefinition resolves a handle previously returned by ListVersions
	// into a full PackageDef.
	GetDefinition(ctx context.Context, handle DefinitionHandle) (pkgmodel.PackageDef, error)

	// Names lists every package name the repository carries. The
	// dependency cache queries ListVersions only for the names returned
	// here; a repository that returns ErrNamesUnsupported is queried for
	// the image's root names instead.
	Names(ctx context.Context) ([]string, error)
}

// ErrNamesUnsupported is returned by Names when a repository cannot
// enumerate all package names (e.g. a repository addressed purely by
// lookup). None of the repositories in this package return it.
var ErrNamesUnsupported = fmt.Errorf("repository does not support name enumeration")

// Error wraps a transport or protocol failure from a repository with the
// URL it came from. Transient is true when a retry by the caller might
// succeed; the resolver itself never retries.
type Error struct {
	RepositoryURL string
	Transient     bool
	Err           error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("repository %s: %s error: %v", e.RepositoryURL, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
