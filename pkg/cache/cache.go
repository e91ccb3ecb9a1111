// Package cache implements the dependency cache: it aggregates candidates
// from every configured repository, plus any seeded package definitions,
// into a single DependencyGraph keyed by name and ordered by version,
// descending.
package cache

import (
	"context"
	"sort"

	"github.com/sdboyer/constext"
	"golang.org/x/sync/errgroup"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/repository"
)

// Graph is the populated DependencyGraph: a mapping from package name to
// its candidates, version-descending, and a lookup by (name, version).
// Once Populate returns, a Graph is read-only and safe for concurrent
// readers, which the resolver relies on.
type Graph struct {
	byName map[string][]pkgmodel.PackageDef
	// byKey is keyed by "name@version" rather than by pkgmodel.Key itself:
	// SemanticVersion holds a pointer, so two equal versions parsed
	// separately would be distinct map keys.
	byKey map[string]pkgmodel.PackageDef
}

func keyString(k pkgmodel.Key) string { return k.Name + "@" + k.Version.String() }

// Candidates returns name's candidate list, version-descending. The
// returned slice must not be mutated by the caller.
func (g *Graph) Candidates(name string) []pkgmodel.PackageDef {
	return g.byName[name]
}

// Lookup returns the definition for an exact (name, version), if present.
func (g *Graph) Lookup(k pkgmodel.Key) (pkgmodel.PackageDef, bool) {
	def, ok := g.byKey[keyString(k)]
	return def, ok
}

// Names reports every package name the graph has at least one candidate
// for, sorted alphabetically.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.byName))
	for n := range g.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Populate asks each repository for the package names it carries (via
// Repository.Names, falling back to rootNames for repositories that return
// ErrNamesUnsupported), queries that repository for each of those names'
// candidates, drops definitions whose OS or architecture does not match the
// target, seeds the graph with preloaded defs, and returns the merged
// DependencyGraph.
//
// Independent (repository, name) queries run concurrently via errgroup, but
// Populate itself blocks until every query completes: the graph is fully
// built before the resolver ever sees it. repos is consulted in priority
// order: when the same (name, version) is reported by more than one
// repository, the earliest repository in repos wins.
func Populate(ctx context.Context, repos []repository.Repository, rootNames []string, targetOS string, targetArch arch.CpuArchitecture, seed []pkgmodel.PackageDef) (*Graph, error) {
	type job struct {
		repoIndex int
		name      string
	}

	var jobs []job
	for ri, repo := range repos {
		names, err := repo.Names(ctx)
		if err != nil {
			if err == repository.ErrNamesUnsupported {
				names = rootNames
			} else {
				return nil, err
			}
		}
		for _, n := range names {
			jobs = append(jobs, job{repoIndex: ri, name: n})
		}
	}

	type found struct {
		repoIndex int
		def       pkgmodel.PackageDef
	}

	resultsCh := make(chan found, len(jobs))
	grp, gctx := errgroup.WithContext(ctx)
	cctx, cancel := constext.Cons(ctx, gctx)
	defer cancel()

	for _, j := range jobs {
		repo, name, ri := repos[j.repoIndex], j.name, j.repoIndex
		grp.Go(func() error {
			cands, err := repo.ListVersions(cctx, name, targetOS, targetArch)
			if err != nil {
				return err
			}
			for _, c := range cands {
				def, err := repo.GetDefinition(cctx, c.Handle)
				if err != nil {
					return err
				}
				if (targetOS != "" && !def.OSMatches(targetOS)) || !def.ArchCompatible(targetArch) {
					continue
				}
				resultsCh <- found{repoIndex: ri, def: def}
			}
			return nil
		})
	}

	err := grp.Wait()
	close(resultsCh)
	if err != nil {
		return nil, err
	}

	var results []found
	for r := range resultsCh {
		results = append(results, r)
	}
	// Earliest repository wins: stable-sort by priority before the dedup
	// pass so goroutine completion order never affects which repository's
	// metadata is kept for a given (name, version).
	sort.SliceStable(results, func(i, j int) bool { return results[i].repoIndex < results[j].repoIndex })

	g := &Graph{
		byName: make(map[string][]pkgmodel.PackageDef),
		byKey:  make(map[string]pkgmodel.PackageDef),
	}

	add := func(def pkgmodel.PackageDef) {
		k := keyString(def.Key())
		if _, exists := g.byKey[k]; exists {
			return
		}
		g.byKey[k] = def
		g.byName[def.Identity.Name] = append(g.byName[def.Identity.Name], def)
	}

	for _, r := range results {
		add(r.def)
	}
	for _, def := range seed {
		add(def)
	}

	for name, defs := range g.byName {
		sort.SliceStable(defs, func(i, j int) bool {
			return defs[i].Identity.Version.Compare(defs[j].Identity.Version) > 0
		})
		g.byName[name] = defs
	}

	return g, nil
}
