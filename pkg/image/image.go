// Package image holds the image identifier data model: the ImageSpecifier
// consumed by the resolver and merge engine, and the immutable
// ImageIdentifier produced by a successful resolve.
package image

import (
	"fmt"
	"sort"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
)

// Specifier is the input to a resolve: root package specifiers, the
// repositories to search, the resolve target, and (populated only by merge
// flows) soft-fixed and already-installed packages.
type Specifier struct {
	Roots        []pkgmodel.PackageSpecifier
	Repositories []string
	OS           string
	Arch         arch.CpuArchitecture

	FixedPackages     []pkgmodel.PackageSpecifier
	InstalledPackages []pkgmodel.PackageDef
}

// Identifier is the immutable result of a successful resolve: the concrete
// package set, sorted by name, and the repositories it was drawn from.
//
// Invariant: every dependency of every package in Packages is itself
// present in Packages and satisfied (enforced by the resolver before this
// type is constructed; NewIdentifier does not re-check it).
type Identifier struct {
	packages     []pkgmodel.PackageDef
	repositories []string
}

// NewIdentifier builds an Identifier from a resolver's selected packages,
// sorting them by name for deterministic output.
func NewIdentifier(packages []pkgmodel.PackageDef, repositories []string) Identifier {
	sorted := make([]pkgmodel.PackageDef, len(packages))
	copy(sorted, packages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Identity.Name < sorted[j].Identity.Name })
	return Identifier{packages: sorted, repositories: repositories}
}

// Packages returns the resolved package set, sorted by name. The returned
// slice must not be mutated; Identifier is immutable after construction.
func (id Identifier) Packages() []pkgmodel.PackageDef { return id.packages }

// Repositories returns the repository URLs the resolve consulted.
func (id Identifier) Repositories() []string { return id.repositories }

// SourceRepository returns the repository a named package in this
// identifier was drawn from, if present.
func (id Identifier) SourceRepository(name string) (string, bool) {
	for _, p := range id.packages {
		if p.Identity.Name == name {
			return p.SourceRepository, true
		}
	}
	return "", false
}

func (id Identifier) String() string {
	s := ""
	for i, p := range id.packages {
		if i > 0 {
			s += ", "
		}
		s += p.Identity.String()
	}
	return s
}

// SpecifierBuilder constructs a Specifier, enforcing at Build time that the
// OS and architecture are set and that no duplicate root names appear.
type SpecifierBuilder struct {
	spec Specifier
	err  error
}

// NewSpecifierBuilder starts building a Specifier targeting the given OS
// and architecture.
func NewSpecifierBuilder(os string, a arch.CpuArchitecture) *SpecifierBuilder {
	return &SpecifierBuilder{spec: Specifier{OS: os, Arch: a}}
}

// AddRoot adds a root package specifier. Duplicate root names are rejected
// at Build.
func (b *SpecifierBuilder) AddRoot(p pkgmodel.PackageSpecifier) *SpecifierBuilder {
	b.spec.Roots = append(b.spec.Roots, p)
	return b
}

// AddRepository appends a repository URL, in priority order.
func (b *SpecifierBuilder) AddRepository(url string) *SpecifierBuilder {
	b.spec.Repositories = append(b.spec.Repositories, url)
	return b
}

// AddFixed adds a soft- or strictly-fixed package specifier (merge flows).
func (b *SpecifierBuilder) AddFixed(p pkgmodel.PackageSpecifier) *SpecifierBuilder {
	b.spec.FixedPackages = append(b.spec.FixedPackages, p)
	return b
}

// AddInstalled seeds an already-installed package definition (merge flows).
func (b *SpecifierBuilder) AddInstalled(def pkgmodel.PackageDef) *SpecifierBuilder {
	b.spec.InstalledPackages = append(b.spec.InstalledPackages, def)
	return b
}

// Build validates and returns the Specifier.
func (b *SpecifierBuilder) Build() (Specifier, error) {
	if b.err != nil {
		return Specifier{}, b.err
	}
	if b.spec.OS == "" {
		return Specifier{}, fmt.Errorf("image specifier: OS must be set")
	}
	if b.spec.Arch == arch.Unspecified {
		return Specifier{}, fmt.Errorf("image specifier: architecture must be set")
	}

	seen := make(map[string]struct{}, len(b.spec.Roots))
	for _, r := range b.spec.Roots {
		if _, dup := seen[r.Name]; dup {
			return Specifier{}, fmt.Errorf("image specifier: duplicate root package %q", r.Name)
		}
		seen[r.Name] = struct{}{}
	}

	return b.spec, nil
}
