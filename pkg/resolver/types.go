package resolver

import (
	"github.com/emicklei/dot"
	"github.com/hashicorp/go-hclog"

	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/version"
)

// ConflictReport records one package name for which no candidate could be
// assigned, and why, for the diagnostic output of a failed resolve.
// Resolve leaves Considered as the zero SemanticVersion.
type ConflictReport struct {
	Name       string
	Considered version.SemanticVersion
	Reason     error
}

// Resolution is the outcome of a resolve attempt: either a successful
// assignment or a failure with diagnostics.
type Resolution struct {
	Assignments map[string]version.SemanticVersion
	Packages    []pkgmodel.PackageDef
	Success     bool
	Diagnostic  *dot.Graph
	Conflicts   []ConflictReport
}

// Hook is an "on-resolve" extensibility point: given a name, it may return
// a PackageDef to use instead of consulting the DependencyGraph. The
// resolver calls it before looking a name up in the cache.
type Hook func(name string) (pkgmodel.PackageDef, bool)

// Options carries the resolver's optional collaborators: a trace logger
// and a resolve hook.
type Options struct {
	TraceLogger hclog.Logger
	ResolveHook Hook
}
