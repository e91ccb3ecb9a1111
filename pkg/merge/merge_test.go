package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/cache"
	"github.com/Keysight/opentap/pkg/image"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/repository"
	"github.com/Keysight/opentap/pkg/resolver"
	"github.com/Keysight/opentap/pkg/version"
)

func installed(name, ver string) pkgmodel.PackageDef {
	return pkgmodel.PackageDef{
		Identity: pkgmodel.PackageIdentity{Name: name, Version: version.MustParse(ver), OS: "linux", Arch: arch.AnyCPU},
	}
}

// An installed package not named by any new root is retained and
// soft-pinned Compatible, so a minor upgrade forced by a sibling root can
// still succeed.
func TestMergeRetainsUntouchedPackages(t *testing.T) {
	existing := []pkgmodel.PackageDef{installed("OpenTAP", "9.12.0"), installed("Demonstration", "9.0.2")}
	newRoots := []pkgmodel.PackageSpecifier{{Name: "Demonstration", Version: version.NewCompatible(version.MustParse("9.1.0"))}}

	fixed, seed, roots, err := Merge(existing, newRoots)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if len(roots) != 1 || roots[0].Name != "Demonstration" {
		t.Fatalf("expected the new root to pass through untouched, got %+v", roots)
	}
	if len(fixed) != 1 || fixed[0].Name != "OpenTAP" || fixed[0].Version.Kind() != version.Compatible {
		t.Fatalf("expected OpenTAP retained as a Compatible fixed package, got %+v", fixed)
	}
	if len(seed) != 1 || seed[0].Identity.Name != "OpenTAP" {
		t.Fatalf("expected OpenTAP seeded into the dependency graph, got %+v", seed)
	}
}

func TestMergeReplacesNamedRoots(t *testing.T) {
	existing := []pkgmodel.PackageDef{installed("OpenTAP", "9.12.0")}
	newRoots := []pkgmodel.PackageSpecifier{{Name: "OpenTAP", Version: version.NewCompatible(version.MustParse("9.14.0"))}}

	fixed, _, roots, err := Merge(existing, newRoots)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(fixed) != 0 {
		t.Fatalf("expected OpenTAP not to be double-fixed once it's a new root, got %+v", fixed)
	}
	if len(roots) != 1 {
		t.Fatalf("expected the replacing root to pass through, got %+v", roots)
	}
}

func TestMergeResolvesLocalFilePath(t *testing.T) {
	dir := t.TempDir()
	pkgDir := filepath.Join(dir, "LocalPlugin")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	defPath := filepath.Join(pkgDir, "LocalPlugin.pkgdef.toml")
	contents := `name = "LocalPlugin"
version = "1.0.0"
os = "linux"
architecture = "any"
`
	if err := os.WriteFile(defPath, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	newRoots := []pkgmodel.PackageSpecifier{{Name: pkgDir}}
	_, seed, roots, err := Merge(nil, newRoots)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(roots) != 1 || roots[0].Name != "LocalPlugin" || roots[0].Version.Kind() != version.Exact {
		t.Fatalf("expected the local package resolved and pinned Exact, got %+v", roots)
	}
	if len(seed) != 1 || seed[0].Identity.Name != "LocalPlugin" {
		t.Fatalf("expected the local package seeded into the dependency graph, got %+v", seed)
	}
}

// TestMergeThenResolveRetainsFixedPackage runs Merge's output end-to-end
// through resolver.Resolve: OpenTAP is installed and untouched by the new
// root, so it is retained and soft-pinned Compatible(9.11.0). The catalog
// carries more OpenTAP candidates than Demonstration candidates, so
// fail-first tries Demonstration first; its highest version (9.1.0) pulls
// OpenTAP's aggregate constraint up to Compatible(9.12.0), which the
// catalog can't satisfy and empties OpenTAP's candidate list entirely.
// That must backtrack to Demonstration 9.0.2 rather than aborting the
// whole resolve, since OpenTAP being a fixed (not just root) constraint
// doesn't make this conflict unrecoverable.
func TestMergeThenResolveRetainsFixedPackage(t *testing.T) {
	existing := []pkgmodel.PackageDef{installed("OpenTAP", "9.11.0")}
	newRoots := []pkgmodel.PackageSpecifier{
		{Name: "Demonstration", Version: version.NewCompatible(version.MustParse("9.0.0"))},
	}

	fixed, seed, roots, err := Merge(existing, newRoots)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	mock := repository.NewMock("fixture").
		Add(installed("OpenTAP", "9.11.0")).
		Add(installed("OpenTAP", "9.11.3")).
		Add(installed("OpenTAP", "9.11.7")).
		Add(pkgmodel.PackageDef{
			Identity: pkgmodel.PackageIdentity{Name: "Demonstration", Version: version.MustParse("9.0.2"), OS: "linux", Arch: arch.AnyCPU},
			Dependencies: []pkgmodel.PackageDependency{
				{Name: "OpenTAP", Version: version.NewCompatible(version.MustParse("9.11.0"))},
			},
		}).
		Add(pkgmodel.PackageDef{
			Identity: pkgmodel.PackageIdentity{Name: "Demonstration", Version: version.MustParse("9.1.0"), OS: "linux", Arch: arch.AnyCPU},
			Dependencies: []pkgmodel.PackageDependency{
				{Name: "OpenTAP", Version: version.NewCompatible(version.MustParse("9.12.0"))},
			},
		})

	spec := image.Specifier{
		Roots:             roots,
		FixedPackages:     fixed,
		InstalledPackages: seed,
		OS:                "linux",
		Arch:              arch.X64,
	}

	ctx := context.Background()
	graph, err := cache.Populate(ctx, []repository.Repository{mock}, []string{"Demonstration"}, spec.OS, spec.Arch, spec.InstalledPackages)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}

	res, err := resolver.Resolve(ctx, spec, graph, resolver.Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, conflicts: %v", res.Conflicts)
	}
	if res.Assignments["Demonstration"].String() != "9.0.2" {
		t.Errorf("expected Demonstration to backtrack to the version compatible with the retained install, got %s", res.Assignments["Demonstration"])
	}
	if res.Assignments["OpenTAP"].String() != "9.11.7" {
		t.Errorf("expected the retained install to resolve to its highest Compatible(9.11.0) candidate, got OpenTAP=%s", res.Assignments["OpenTAP"])
	}
}
