package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	giturls "github.com/chainguard-dev/git-urls"
	mvcs "github.com/Masterminds/vcs"
	"github.com/pelletier/go-toml/v2"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/version"
)

// VCS is a Repository backed by a version-control remote (git, hg, svn, or
// bzr, via Masterminds/vcs): its tags are treated as candidate versions,
// and each tag's checkout is expected to carry a single package definition
// file, "<name>.pkgdef.toml", at its root.
//
// This mirrors golang-dep's reliance on the same library for multi-VCS
// support, repurposed here: dep used it to fetch Go source trees, we use
// it only to enumerate tags and read one small metadata file per tag.
type VCS struct {
	remote   string
	workRoot string
	name     string
	repo     mvcs.Repo
}

// NewVCS builds a VCS repository for the given remote URL. workRoot is a
// scratch directory the implementation may use for checkouts; the caller
// owns its lifecycle.
func NewVCS(remote, workRoot, name string) (*VCS, error) {
	if _, err := giturls.Parse(remote); err != nil {
		return nil, fmt.Errorf("invalid repository URL %q: %w", remote, err)
	}

	local := filepath.Join(workRoot, sanitize(remote))
	repo, err := mvcs.NewRepo(remote, local)
	if err != nil {
		return nil, &Error{RepositoryURL: remote, Transient: true, Err: err}
	}

	return &VCS{remote: remote, workRoot: local, name: name, repo: repo}, nil
}

func (v *VCS) URL() string { return v.remote }

type vcsHandle struct {
	tag string
}

func (v *VCS) ensureCloned(ctx context.Context) error {
	if v.repo.CheckLocal() {
		return withCancel(ctx, v.repo.Update)
	}
	return withCancel(ctx, v.repo.Get)
}

func withCancel(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// ListVersions lists every semver tag as a candidate. It does not filter by
// OS or architecture: those are only known from each tag's definition file,
// so the dependency cache filters after GetDefinition.
func (v *VCS) ListVersions(ctx context.Context, name, _ string, _ arch.CpuArchitecture) ([]Candidate, error) {
	if name != v.name {
		return nil, nil
	}
	if err := v.ensureCloned(ctx); err != nil {
		return nil, &Error{RepositoryURL: v.remote, Transient: true, Err: err}
	}

	tags, err := v.repo.Tags()
	if err != nil {
		return nil, &Error{RepositoryURL: v.remote, Transient: true, Err: err}
	}

	var out []Candidate
	for _, tag := range tags {
		ver, err := version.Parse(tag)
		if err != nil {
			// Non-semver tags (release branches, "latest", etc) are simply
			// not candidates; this is not an error.
			continue
		}
		out = append(out, Candidate{Version: ver, Handle: vcsHandle{tag: tag}})
	}
	return out, nil
}

func (v *VCS) GetDefinition(ctx context.Context, handle DefinitionHandle) (pkgmodel.PackageDef, error) {
	h, ok := handle.(vcsHandle)
	if !ok {
		return pkgmodel.PackageDef{}, &Error{RepositoryURL: v.remote, Err: errInvalidHandle}
	}
	if err := ctx.Err(); err != nil {
		return pkgmodel.PackageDef{}, err
	}
	if err := v.repo.UpdateVersion(h.tag); err != nil {
		return pkgmodel.PackageDef{}, &Error{RepositoryURL: v.remote, Transient: true, Err: err}
	}

	path := filepath.Join(v.workRoot, v.name+defFileSuffix)
	raw, err := os.ReadFile(path)
	if err != nil {
		return pkgmodel.PackageDef{}, &Error{RepositoryURL: v.remote, Err: err}
	}

	var doc tomlPackageDef
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return pkgmodel.PackageDef{}, &Error{RepositoryURL: v.remote, Err: err}
	}

	def, err := doc.toPackageDef(v.remote, path)
	if err != nil {
		return pkgmodel.PackageDef{}, err
	}
	// The checkout is scratch space reused for every tag, so a VCS
	// definition has no LocalPath.
	def.LocalPath = ""
	return def, nil
}

func (v *VCS) Names(context.Context) ([]string, error) {
	return []string{v.name}, nil
}

func sanitize(remote string) string {
	out := make([]byte, 0, len(remote))
	for i := 0; i < len(remote); i++ {
		c := remote[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
