package resolver

import (
	"github.com/mitchellh/hashstructure/v2"

	"github.com/Keysight/opentap/pkg/image"
)

// hashableInputs is a stable, exported-field projection of image.Specifier
// suitable for hashstructure: image.Specifier itself holds unexported
// version.Specifier internals that hash unstably across runs.
type hashableInputs struct {
	Roots             []string
	Repositories      []string
	OS                string
	Arch              string
	FixedPackages     []string
	InstalledPackages []string
}

// HashInputs produces a stable hash of an ImageSpecifier's content, for
// callers that want to cache or compare resolve inputs without a full
// structural comparison. Equal
// specifiers (by observable content) always hash equal, independent of
// slice capacity or map iteration order.
func HashInputs(spec image.Specifier) (uint64, error) {
	in := hashableInputs{OS: spec.OS, Arch: spec.Arch.String()}
	for _, r := range spec.Roots {
		in.Roots = append(in.Roots, r.String())
	}
	in.Repositories = append(in.Repositories, spec.Repositories...)
	for _, f := range spec.FixedPackages {
		in.FixedPackages = append(in.FixedPackages, f.String())
	}
	for _, p := range spec.InstalledPackages {
		in.InstalledPackages = append(in.InstalledPackages, p.Identity.String())
	}

	return hashstructure.Hash(in, hashstructure.FormatV2, nil)
}
