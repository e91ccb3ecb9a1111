package image

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/version"
)

func TestSpecifierBuilderRejectsMissingTarget(t *testing.T) {
	b := NewSpecifierBuilder("", arch.Unspecified)
	if _, err := b.Build(); err == nil {
		t.Fatal("expected an error when OS/arch are unset")
	}
}

func TestSpecifierBuilderRejectsDuplicateRoots(t *testing.T) {
	b := NewSpecifierBuilder("linux", arch.X64).
		AddRoot(pkgmodel.PackageSpecifier{Name: "OpenTAP"}).
		AddRoot(pkgmodel.PackageSpecifier{Name: "OpenTAP"})
	if _, err := b.Build(); err == nil {
		t.Fatal("expected an error for a duplicate root name")
	}
}

func TestSpecifierBuilderBuilds(t *testing.T) {
	b := NewSpecifierBuilder("linux", arch.X64).
		AddRoot(pkgmodel.PackageSpecifier{Name: "OpenTAP"}).
		AddRepository("https://packages.example/repo")
	spec, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(spec.Roots) != 1 || len(spec.Repositories) != 1 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
}

func TestNewIdentifierSortsByName(t *testing.T) {
	packages := []pkgmodel.PackageDef{
		{Identity: pkgmodel.PackageIdentity{Name: "zeta", Version: version.MustParse("1.0.0")}},
		{Identity: pkgmodel.PackageIdentity{Name: "alpha", Version: version.MustParse("1.0.0")}},
	}
	id := NewIdentifier(packages, []string{"repo"})

	gotNames := []string{id.Packages()[0].Identity.Name, id.Packages()[1].Identity.Name}
	wantNames := []string{"alpha", "zeta"}
	if diff := cmp.Diff(wantNames, gotNames); diff != "" {
		t.Fatalf("package order mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDocumentShorthand(t *testing.T) {
	spec, err := ParseDocument("OpenTAP:^9.12.0,Demonstration")
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(spec.Roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(spec.Roots))
	}
	if spec.Roots[0].Name != "OpenTAP" || spec.Roots[0].Version.Kind() != version.Compatible {
		t.Errorf("unexpected first root: %+v", spec.Roots[0])
	}
	if spec.Roots[1].Version.Kind() != version.AnyRelease {
		t.Errorf("expected a bare name to parse as AnyRelease, got %s", spec.Roots[1].Version.Kind())
	}
}

func TestParseDocumentJSON(t *testing.T) {
	doc := `{"os": "linux", "architecture": "x64", "packages": [{"name": "OpenTAP", "version": "^9.12.0"}]}`
	spec, err := ParseDocument(doc)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if spec.OS != "linux" || spec.Arch != arch.X64 || len(spec.Roots) != 1 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
}

func TestParseDocumentJSONRejectsMissingName(t *testing.T) {
	doc := `{"packages": [{"version": "1.0.0"}]}`
	if _, err := ParseDocument(doc); err == nil {
		t.Fatal("expected schema validation to reject a package with no name")
	}
}

func TestParseDocumentXML(t *testing.T) {
	doc := `<Image OS="linux" Architecture="x64"><Package Name="OpenTAP" Version="^9.12.0"/></Image>`
	spec, err := ParseDocument(doc)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(spec.Roots) != 1 || spec.Roots[0].Name != "OpenTAP" {
		t.Fatalf("unexpected spec: %+v", spec)
	}
}
