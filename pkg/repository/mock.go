package repository

import (
	"context"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
)

// identityKey is the full (name, version, os, arch) identity used to store
// definitions internally: unlike pkgmodel.Key, which the dependency cache
// uses to dedup by (name, version) alone, it must disambiguate two os/arch
// variants published at the same version.
type identityKey struct {
	name    string
	version string
	os      string
	arch    arch.CpuArchitecture
}

func identityOf(def pkgmodel.PackageDef) identityKey {
	return identityKey{
		name:    def.Identity.Name,
		version: def.Identity.Version.String(),
		os:      def.Identity.OS,
		arch:    def.Identity.Arch,
	}
}

// Mock is an in-memory fixture Repository, used by the resolver's scenario
// tests and by any embedder that already has package metadata in hand and
// doesn't need network I/O.
type Mock struct {
	url      string
	defs     map[identityKey]pkgmodel.PackageDef
	byName   map[string][]identityKey
	failWith error // if set, ListVersions and GetDefinition fail with this error
}

// NewMock builds an empty Mock repository addressed by url.
func NewMock(url string) *Mock {
	return &Mock{
		url:    url,
		defs:   make(map[identityKey]pkgmodel.PackageDef),
		byName: make(map[string][]identityKey),
	}
}

// Add registers a package definition with the mock repository.
func (m *Mock) Add(def pkgmodel.PackageDef) *Mock {
	def.SourceRepository = m.url
	k := identityOf(def)
	m.defs[k] = def
	m.byName[def.Identity.Name] = append(m.byName[def.Identity.Name], k)
	return m
}

// FailWith makes every subsequent ListVersions and GetDefinition call on
// this repository return err, exercising the Error propagation path. URL
// and Names are unaffected.
func (m *Mock) FailWith(err error) *Mock {
	m.failWith = err
	return m
}

func (m *Mock) URL() string { return m.url }

func (m *Mock) ListVersions(_ context.Context, name, targetOS string, targetArch arch.CpuArchitecture) ([]Candidate, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}

	var out []Candidate
	for _, k := range m.byName[name] {
		def := m.defs[k]
		if targetOS != "" && !def.OSMatches(targetOS) {
			continue
		}
		if !def.ArchCompatible(targetArch) {
			continue
		}
		out = append(out, Candidate{Version: def.Identity.Version, Handle: k})
	}
	return out, nil
}

func (m *Mock) GetDefinition(_ context.Context, handle DefinitionHandle) (pkgmodel.PackageDef, error) {
	if m.failWith != nil {
		return pkgmodel.PackageDef{}, m.failWith
	}
	k, ok := handle.(identityKey)
	if !ok {
		return pkgmodel.PackageDef{}, &Error{RepositoryURL: m.url, Err: errInvalidHandle}
	}
	def, ok := m.defs[k]
	if !ok {
		return pkgmodel.PackageDef{}, &Error{RepositoryURL: m.url, Err: errInvalidHandle}
	}
	return def, nil
}

func (m *Mock) Names(context.Context) ([]string, error) {
	names := make([]string, 0, len(m.byName))
	for n := range m.byName {
		names = append(names, n)
	}
	return names, nil
}

var errInvalidHandle = errInvalidHandleType{}

type errInvalidHandleType struct{}

func (errInvalidHandleType) Error() string { return "invalid definition handle for this repository" }
