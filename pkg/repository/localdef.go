package repository

import (
	"fmt"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/version"
)

// defFileSuffix names the TOML package definition file read by both the
// VCS and File repository variants.
const defFileSuffix = ".pkgdef.toml"

// tomlPackageDef is the on-disk shape of a package definition file, read
// with pelletier/go-toml/v2 by both File and VCS. Kept separate from
// pkgmodel.PackageDef so the wire format can evolve independently of the
// in-memory model.
type tomlPackageDef struct {
	Name         string           `toml:"name"`
	Version      string           `toml:"version"`
	OS           string           `toml:"os"`
	Architecture string           `toml:"architecture"`
	Dependencies []tomlDependency `toml:"dependency"`
}

type tomlDependency struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

func (t tomlPackageDef) toPackageDef(sourceRepository, localPath string) (pkgmodel.PackageDef, error) {
	if t.Name == "" {
		return pkgmodel.PackageDef{}, fmt.Errorf("%s: missing name", localPath)
	}
	ver, err := version.Parse(t.Version)
	if err != nil {
		return pkgmodel.PackageDef{}, fmt.Errorf("%s: version: %w", localPath, err)
	}
	a, err := arch.Parse(t.Architecture)
	if err != nil {
		return pkgmodel.PackageDef{}, fmt.Errorf("%s: architecture: %w", localPath, err)
	}

	deps := make([]pkgmodel.PackageDependency, 0, len(t.Dependencies))
	for _, d := range t.Dependencies {
		spec, err := version.ParseSpecifier(d.Version)
		if err != nil {
			return pkgmodel.PackageDef{}, fmt.Errorf("%s: dependency %s: %w", localPath, d.Name, err)
		}
		deps = append(deps, pkgmodel.PackageDependency{Name: d.Name, Version: spec})
	}

	return pkgmodel.PackageDef{
		Identity: pkgmodel.PackageIdentity{
			Name:    t.Name,
			Version: ver,
			OS:      t.OS,
			Arch:    a,
		},
		Dependencies:     deps,
		SourceRepository: sourceRepository,
		LocalPath:        localPath,
	}, nil
}
