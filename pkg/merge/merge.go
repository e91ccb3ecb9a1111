// Package merge converts an existing installation plus a list of new root
// specifiers into an augmented ImageSpecifier, soft-pinning retained
// packages before handing off to the resolver.
package merge

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/repository"
	"github.com/Keysight/opentap/pkg/version"
)

// defFileSuffix matches repository.File's on-disk convention for a
// package definition file.
const defFileSuffix = ".pkgdef.toml"

// Merge partitions installed into replaced (named by newRoots, or backed
// by a local file path) and retained, pins retained packages softly with
// Compatible(version), and returns the fixedPackages/installedPackages
// seeds plus the root specifiers the caller should hand to the resolver in
// place of newRoots (newRoots in order, with each local-path entry replaced
// by its Exact pin).
//
// A newRoots entry whose Name is also a filesystem path to a directory
// containing a "*.pkgdef.toml" file is resolved to that local package and
// pinned Exact, rather than left as a name for the resolver to look up in
// a remote repository.
func Merge(installed []pkgmodel.PackageDef, newRoots []pkgmodel.PackageSpecifier) (fixedPackages []pkgmodel.PackageSpecifier, installedSeed []pkgmodel.PackageDef, roots []pkgmodel.PackageSpecifier, err error) {
	replacedNames := make(map[string]bool, len(newRoots))
	resolvedRoots := make([]pkgmodel.PackageSpecifier, 0, len(newRoots))

	for _, r := range newRoots {
		local, ok, loadErr := loadLocalPackage(r.Name)
		if loadErr != nil {
			return nil, nil, nil, loadErr
		}
		if ok {
			replacedNames[local.Identity.Name] = true
			resolvedRoots = append(resolvedRoots, pkgmodel.PackageSpecifier{
				Name:    local.Identity.Name,
				Version: version.NewExact(local.Identity.Version),
				Arch:    local.Identity.Arch,
				OS:      local.Identity.OS,
			})
			installedSeed = append(installedSeed, local)
			continue
		}

		replacedNames[r.Name] = true
		resolvedRoots = append(resolvedRoots, r)
	}

	for _, def := range installed {
		if replacedNames[def.Identity.Name] {
			continue
		}
		fixedPackages = append(fixedPackages, pkgmodel.PackageSpecifier{
			Name:    def.Identity.Name,
			Version: version.NewCompatible(def.Identity.Version),
			Arch:    def.Identity.Arch,
			OS:      def.Identity.OS,
		})
		installedSeed = append(installedSeed, def)
	}

	return fixedPackages, installedSeed, resolvedRoots, nil
}

// loadLocalPackage reports whether name is a directory on disk carrying a
// package definition file, and loads it if so. A name that doesn't exist
// as a path at all is not an error: it's simply treated as a remote
// package name for the resolver to look up.
func loadLocalPackage(name string) (pkgmodel.PackageDef, bool, error) {
	info, statErr := os.Stat(name)
	if statErr != nil || !info.IsDir() {
		return pkgmodel.PackageDef{}, false, nil
	}

	var found string
	err := godirwalk.Walk(name, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() && strings.HasSuffix(path, defFileSuffix) && found == "" {
				found = path
			}
			return nil
		},
	})
	if err != nil {
		return pkgmodel.PackageDef{}, false, err
	}
	if found == "" {
		return pkgmodel.PackageDef{}, false, nil
	}

	file, err := repository.NewFile(filepath.Dir(found))
	if err != nil {
		return pkgmodel.PackageDef{}, false, err
	}
	names, err := file.Names(context.Background())
	if err != nil || len(names) == 0 {
		return pkgmodel.PackageDef{}, false, err
	}
	return defByPath(file, names[0])
}

func defByPath(file *repository.File, name string) (pkgmodel.PackageDef, bool, error) {
	ctx := context.Background()
	cands, err := file.ListVersions(ctx, name, "", arch.Unspecified)
	if err != nil || len(cands) == 0 {
		return pkgmodel.PackageDef{}, false, err
	}
	def, err := file.GetDefinition(ctx, cands[0].Handle)
	if err != nil {
		return pkgmodel.PackageDef{}, false, err
	}
	return def, true, nil
}
