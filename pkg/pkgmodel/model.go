// Package pkgmodel holds the data types shared by the repository client,
// dependency cache, resolver, and image identifier: the declarative
// specifiers an image names, and the concrete package definitions a
// repository resolves them to.
package pkgmodel

import (
	"fmt"
	"strings"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/version"
)

// PackageSpecifier is one entry in an image's root list (or a fixed/
// installed package in a merge): a name plus a version constraint,
// optionally narrowed to a specific OS/architecture.
type PackageSpecifier struct {
	Name    string
	Version version.Specifier
	Arch    arch.CpuArchitecture
	OS      string // empty means "unconstrained"
}

func (p PackageSpecifier) String() string {
	if p.Version.String() == "" {
		return p.Name
	}
	return fmt.Sprintf("%s %s", p.Name, p.Version)
}

// PackageIdentity uniquely identifies one concrete package variant.
type PackageIdentity struct {
	Name    string
	Version version.SemanticVersion
	OS      string
	Arch    arch.CpuArchitecture
}

func (id PackageIdentity) String() string {
	return fmt.Sprintf("%s@%s", id.Name, id.Version)
}

// Key is the (name, version) identity used by the dependency cache and
// resolver to deduplicate and look up definitions; two PackageDefs sharing
// a Key are interchangeable.
type Key struct {
	Name    string
	Version version.SemanticVersion
}

func (id PackageIdentity) Key() Key { return Key{Name: id.Name, Version: id.Version} }

// PackageDependency is one dependency a PackageDef declares on another
// named package.
type PackageDependency struct {
	Name    string
	Version version.Specifier
}

// PackageDef is a concrete, versioned package as reported by a repository
// (or side-loaded locally): its identity, its dependencies, and the
// repository it came from.
type PackageDef struct {
	Identity         PackageIdentity
	Dependencies     []PackageDependency
	SourceRepository string // repository URL, or the directory for File/local defs; empty for defs built in memory

	// LocalPath is set when this PackageDef was loaded from a file-backed
	// repository or a side-loaded local path rather than a remote
	// repository.
	LocalPath string
}

func (d PackageDef) Key() Key { return d.Identity.Key() }

// OSMatches reports whether the definition's OS matches the target OS,
// case-insensitively.
func (d PackageDef) OSMatches(targetOS string) bool {
	return strings.EqualFold(d.Identity.OS, targetOS)
}

// ArchCompatible reports whether the definition's architecture is loadable
// on a host targeting hostArch.
func (d PackageDef) ArchCompatible(hostArch arch.CpuArchitecture) bool {
	return arch.HostSupports(hostArch, d.Identity.Arch)
}
