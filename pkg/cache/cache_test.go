package cache

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/repository"
	"github.com/Keysight/opentap/pkg/version"
)

func def(name, ver, os string) pkgmodel.PackageDef {
	return pkgmodel.PackageDef{
		Identity: pkgmodel.PackageIdentity{
			Name:    name,
			Version: version.MustParse(ver),
			OS:      os,
			Arch:    arch.AnyCPU,
		},
	}
}

func TestPopulateDedupesFirstRepositoryWins(t *testing.T) {
	primary := repository.NewMock("primary").Add(def("base", "1.0.0", "linux"))
	secondary := repository.NewMock("secondary").Add(def("base", "1.0.0", "linux")).Add(def("base", "1.1.0", "linux"))

	g, err := Populate(context.Background(), []repository.Repository{primary, secondary}, nil, "linux", arch.X64, nil)
	assert.NilError(t, err)

	cands := g.Candidates("base")
	assert.Assert(t, is.Len(cands, 2))
	assert.Equal(t, cands[0].Identity.Version.String(), "1.1.0")

	k := pkgmodel.Key{Name: "base", Version: version.MustParse("1.0.0")}
	got, ok := g.Lookup(k)
	assert.Assert(t, ok)
	assert.Equal(t, got.SourceRepository, "primary")
}

func TestPopulateFiltersOSAndArch(t *testing.T) {
	repo := repository.NewMock("r").
		Add(def("base", "1.0.0", "windows")).
		Add(def("base", "1.1.0", "linux"))

	g, err := Populate(context.Background(), []repository.Repository{repo}, nil, "linux", arch.X64, nil)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(g.Candidates("base")) != 1 {
		t.Fatalf("expected only the linux candidate, got %d", len(g.Candidates("base")))
	}
}

func TestPopulateSeedsAlwaysIncluded(t *testing.T) {
	repo := repository.NewMock("r")
	seed := []pkgmodel.PackageDef{def("installed", "2.0.0", "linux")}

	g, err := Populate(context.Background(), []repository.Repository{repo}, nil, "linux", arch.X64, seed)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(g.Candidates("installed")) != 1 {
		t.Fatal("expected seeded package to be present regardless of repository contents")
	}
}

func TestPopulatePropagatesRepositoryError(t *testing.T) {
	failing := repository.NewMock("r").FailWith(&repository.Error{RepositoryURL: "r", Transient: true, Err: context.DeadlineExceeded})
	failing.Add(def("base", "1.0.0", "linux"))

	_, err := Populate(context.Background(), []repository.Repository{failing}, nil, "linux", arch.X64, nil)
	if err == nil {
		t.Fatal("expected repository error to propagate")
	}
}
