// Package resolver implements the backtracking constraint solver at the
// core of the image resolver. Given a populated DependencyGraph and an
// ImageSpecifier, it searches for a consistent assignment from package
// names to versions, highest-version-first with conflict-driven pruning.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/emicklei/dot"
	"github.com/hashicorp/go-multierror"

	"github.com/Keysight/opentap/pkg/cache"
	"github.com/Keysight/opentap/pkg/image"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/version"
)

// Resolve searches graph for an assignment satisfying every root and fixed
// specifier in spec, plus the transitive closure of every selected
// package's dependencies. ctx is checked at every pop of the open set; a
// cancelled ctx yields a *Cancelled error.
func Resolve(ctx context.Context, spec image.Specifier, graph *cache.Graph, opts Options) (Resolution, error) {
	s := &solver{
		spec:        spec,
		graph:       graph,
		opts:        opts,
		constraints: make(map[string]version.Specifier),
		assigned:    make(map[string]pkgmodel.PackageDef),
		inProgress:  make(map[string]bool),
		diagnostic:  dot.NewGraph(dot.Directed),
		dotNodes:    make(map[string]dot.Node),
	}

	open, conflict := s.initConstraints()
	if conflict != nil {
		return s.failure(), conflict
	}

	ok, err := s.search(ctx, open)
	if err != nil {
		return s.failure(), err
	}
	if !ok {
		return s.failure(), &DependencyUnsatisfiable{Conflicts: s.multi()}
	}

	return s.success(), nil
}

type solver struct {
	spec  image.Specifier
	graph *cache.Graph
	opts  Options

	constraints map[string]version.Specifier
	assigned    map[string]pkgmodel.PackageDef
	inProgress  map[string]bool

	conflicts  []ConflictReport
	diagnostic *dot.Graph
	dotNodes   map[string]dot.Node
}

// initConstraints merges root and fixed specifiers into per-name aggregate
// constraints and returns the initial open set.
func (s *solver) initConstraints() ([]string, error) {
	openSet := make(map[string]bool)

	merge := func(name string, vs version.Specifier) error {
		if existing, ok := s.constraints[name]; ok {
			merged, ok := version.Intersect(existing, vs)
			if !ok {
				return &ConstraintIntersectionEmpty{Name: name, A: existing, B: vs}
			}
			s.constraints[name] = merged
			return nil
		}
		s.constraints[name] = vs
		openSet[name] = true
		return nil
	}

	for _, r := range s.spec.Roots {
		if err := merge(r.Name, r.Version); err != nil {
			return nil, err
		}
	}
	for _, f := range s.spec.FixedPackages {
		if err := merge(f.Name, f.Version); err != nil {
			return nil, err
		}
	}

	open := make([]string, 0, len(openSet))
	for n := range openSet {
		open = append(open, n)
	}
	sort.Strings(open)
	return open, nil
}

// search is the recursive backtracking step: pick the open name with the
// fewest feasible candidates (fail-first), try each in descending version
// order, and recurse on the resulting open set.
func (s *solver) search(ctx context.Context, open []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &Cancelled{Err: err}
	}
	if len(open) == 0 {
		return true, nil
	}

	name, candidates, rest, err := s.popFailFirst(open)
	if err != nil {
		return false, err
	}

	if len(candidates) == 0 {
		// A fixed name's candidate set emptying out is still just a
		// conflict to backtrack past: it may be one upstream choice (not
		// the fixed constraint itself) that pulled the aggregate too
		// tight, and an ancestor's remaining candidates may leave room
		// for it. Only the top-level search exhausting every option turns
		// this into a hard DependencyUnsatisfiable.
		s.conflicts = append(s.conflicts, ConflictReport{Name: name, Reason: s.noCandidateError(name)})
		return false, nil
	}

	s.trace("searching %s (%d candidates)", name, len(candidates))

	for _, candidate := range candidates {
		ok, newOpen, undo := s.tryAssign(name, candidate)
		if !ok {
			s.recordRejected(name, candidate)
			continue
		}

		s.recordAccepted(name, candidate)

		found, err := s.search(ctx, append(append([]string{}, rest...), newOpen...))
		if found || err != nil {
			if err != nil {
				return false, err
			}
			return true, nil
		}

		undo()
	}

	s.conflicts = append(s.conflicts, ConflictReport{Name: name, Reason: fmt.Errorf("every candidate of %q conflicts with a dependent constraint", name)})
	return false, nil
}

// popFailFirst removes, from open, the name with the fewest feasible
// candidates under its current aggregate constraint, ties broken
// alphabetically. The resolve hook, if present, is consulted first; a hook
// hit short-circuits candidate enumeration to that single definition.
func (s *solver) popFailFirst(open []string) (string, []pkgmodel.PackageDef, []string, error) {
	type scored struct {
		name  string
		cands []pkgmodel.PackageDef
	}

	scoredNames := make([]scored, 0, len(open))
	for _, n := range open {
		scoredNames = append(scoredNames, scored{name: n, cands: s.feasibleCandidates(n)})
	}
	sort.SliceStable(scoredNames, func(i, j int) bool {
		if len(scoredNames[i].cands) != len(scoredNames[j].cands) {
			return len(scoredNames[i].cands) < len(scoredNames[j].cands)
		}
		return scoredNames[i].name < scoredNames[j].name
	})

	chosen := scoredNames[0]
	rest := make([]string, 0, len(open)-1)
	for _, sc := range scoredNames[1:] {
		rest = append(rest, sc.name)
	}
	return chosen.name, chosen.cands, rest, nil
}

// feasibleCandidates returns name's candidates honoring its aggregate
// constraint, highest version first, excluding pre-releases unless the
// constraint itself admits them.
func (s *solver) feasibleCandidates(name string) []pkgmodel.PackageDef {
	if s.opts.ResolveHook != nil {
		if def, ok := s.opts.ResolveHook(name); ok {
			return []pkgmodel.PackageDef{def}
		}
	}

	spec := s.constraints[name]
	all := s.graph.Candidates(name) // already version-descending

	out := make([]pkgmodel.PackageDef, 0, len(all))
	for _, def := range all {
		if !def.ArchCompatible(s.spec.Arch) {
			continue
		}
		if s.spec.OS != "" && !def.OSMatches(s.spec.OS) {
			continue
		}
		if !spec.IsSatisfiedBy(def.Identity.Version) {
			continue
		}
		out = append(out, def)
	}
	return out
}

func (s *solver) noCandidateError(name string) error {
	all := s.graph.Candidates(name)
	if len(all) == 0 {
		return &PackageNotFound{Name: name}
	}
	hasCompatibleTarget := false
	for _, def := range all {
		if def.ArchCompatible(s.spec.Arch) && (s.spec.OS == "" || def.OSMatches(s.spec.OS)) {
			hasCompatibleTarget = true
			break
		}
	}
	if !hasCompatibleTarget {
		return &NoCompatibleVariant{Name: name, TargetOS: s.spec.OS, TargetArch: s.spec.Arch}
	}
	return &ConstraintIntersectionEmpty{Name: name, A: s.constraints[name], B: s.constraints[name]}
}

// tryAssign tentatively assigns name := candidate, intersecting the
// candidate's own dependency specifiers into each dependency's aggregate
// constraint. It returns the set of newly-discovered open names and an undo
// function that restores solver state if the caller backtracks.
//
// Cyclic dependencies are permitted: a dependency on a name already in
// s.assigned or currently s.inProgress is checked for consistency against
// the in-flight assignment rather than re-enqueued; the backtracker never
// loops because inProgress marks the name visited for the duration of this
// call.
func (s *solver) tryAssign(name string, candidate pkgmodel.PackageDef) (bool, []string, func()) {
	prevConstraints := make(map[string]version.Specifier, len(s.constraints))
	for k, v := range s.constraints {
		prevConstraints[k] = v
	}

	s.assigned[name] = candidate
	s.inProgress[name] = true

	var newOpen []string
	for _, dep := range candidate.Dependencies {
		if s.inProgress[dep.Name] {
			if existing, ok := s.assigned[dep.Name]; ok && !dep.Version.IsSatisfiedBy(existing.Identity.Version) {
				s.undo(prevConstraints, name)
				return false, nil, func() {}
			}
			continue
		}
		if existing, ok := s.assigned[dep.Name]; ok {
			if !dep.Version.IsSatisfiedBy(existing.Identity.Version) {
				s.undo(prevConstraints, name)
				return false, nil, func() {}
			}
			continue
		}

		_, alreadyOpen := s.constraints[dep.Name]
		merged := dep.Version
		if alreadyOpen {
			var ok bool
			merged, ok = version.Intersect(s.constraints[dep.Name], dep.Version)
			if !ok {
				s.undo(prevConstraints, name)
				return false, nil, func() {}
			}
		} else {
			newOpen = append(newOpen, dep.Name)
		}
		s.constraints[dep.Name] = merged
	}

	delete(s.inProgress, name)

	return true, newOpen, func() {
		s.undo(prevConstraints, name)
	}
}

func (s *solver) undo(prevConstraints map[string]version.Specifier, name string) {
	s.constraints = prevConstraints
	delete(s.assigned, name)
	delete(s.inProgress, name)
}

func (s *solver) multi() *multierror.Error {
	var merr *multierror.Error
	for _, c := range s.conflicts {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", c.Name, c.Reason))
	}
	return merr
}

func (s *solver) trace(format string, args ...interface{}) {
	if s.opts.TraceLogger != nil {
		s.opts.TraceLogger.Debug(fmt.Sprintf(format, args...))
	}
}

func (s *solver) dotNode(name string, v version.SemanticVersion) dot.Node {
	key := fmt.Sprintf("%s@%s", name, v)
	if n, ok := s.dotNodes[key]; ok {
		return n
	}
	n := s.diagnostic.Node(key).Label(key)
	s.dotNodes[key] = n
	return n
}

func (s *solver) recordAccepted(name string, def pkgmodel.PackageDef) {
	n := s.dotNode(name, def.Identity.Version)
	for _, dep := range def.Dependencies {
		if depDef, ok := s.assigned[dep.Name]; ok {
			s.diagnostic.Edge(n, s.dotNode(dep.Name, depDef.Identity.Version)).Label(dep.Version.String())
		}
	}
}

func (s *solver) recordRejected(name string, def pkgmodel.PackageDef) {
	n := s.dotNode(name, def.Identity.Version)
	n.Attr("color", "red")
}

func (s *solver) failure() Resolution {
	return Resolution{Success: false, Diagnostic: s.diagnostic, Conflicts: s.conflicts}
}

// success builds the Resolution, topologically sorting the selected
// packages leaf-first with alphabetic tie-breaking.
func (s *solver) success() Resolution {
	assignments := make(map[string]version.SemanticVersion, len(s.assigned))
	for name, def := range s.assigned {
		assignments[name] = def.Identity.Version
	}

	return Resolution{
		Assignments: assignments,
		Packages:    topoSort(s.assigned),
		Success:     true,
		Diagnostic:  s.diagnostic,
	}
}

// topoSort orders assigned packages leaves-first (dependencies before
// dependents), alphabetic tie-breaking for deterministic deploy order.
// Cycles are broken by visiting in alphabetic order and marking
// in-progress nodes as already emitted.
func topoSort(assigned map[string]pkgmodel.PackageDef) []pkgmodel.PackageDef {
	names := make([]string, 0, len(assigned))
	for n := range assigned {
		names = append(names, n)
	}
	sort.Strings(names)

	visited := make(map[string]bool, len(assigned))
	visiting := make(map[string]bool, len(assigned))
	var out []pkgmodel.PackageDef

	var visit func(name string)
	visit = func(name string) {
		if visited[name] || visiting[name] {
			return
		}
		def, ok := assigned[name]
		if !ok {
			return
		}
		visiting[name] = true

		deps := make([]string, len(def.Dependencies))
		for i, d := range def.Dependencies {
			deps[i] = d.Name
		}
		sort.Strings(deps)
		for _, d := range deps {
			visit(d)
		}

		visiting[name] = false
		visited[name] = true
		out = append(out, def)
	}

	for _, n := range names {
		visit(n)
	}
	return out
}
