package repository

import (
	"context"
	"os"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pelletier/go-toml/v2"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
)

// File is a Repository backed by a directory of TOML package definition
// files (pelletier/go-toml/v2), used for side-loaded/local packages. The
// directory is walked once, at construction, with karrick/godirwalk; File
// never touches the network.
//
// Each definition file is keyed by its path rather than by (name, version):
// two files may legitimately describe the same (name, version) at
// different os/arch, and the path is already unique.
type File struct {
	root   string
	defs   map[string]pkgmodel.PackageDef
	byName map[string][]string
}

// NewFile walks root for "*.pkgdef.toml" files and loads each one as a
// package definition. A malformed definition file fails the whole load,
// mirroring godirwalk's own fail-fast ErrorCallback default.
func NewFile(root string) (*File, error) {
	f := &File{
		root:   root,
		defs:   make(map[string]pkgmodel.PackageDef),
		byName: make(map[string][]string),
	}

	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || !strings.HasSuffix(path, defFileSuffix) {
				return nil
			}
			return f.load(path)
		},
	})
	if err != nil {
		return nil, &Error{RepositoryURL: root, Err: err}
	}
	return f, nil
}

func (f *File) load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc tomlPackageDef
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	def, err := doc.toPackageDef(f.root, path)
	if err != nil {
		return err
	}
	f.defs[path] = def
	f.byName[def.Identity.Name] = append(f.byName[def.Identity.Name], path)
	return nil
}

func (f *File) URL() string { return f.root }

func (f *File) ListVersions(_ context.Context, name, targetOS string, targetArch arch.CpuArchitecture) ([]Candidate, error) {
	var out []Candidate
	for _, path := range f.byName[name] {
		def := f.defs[path]
		if targetOS != "" && !def.OSMatches(targetOS) {
			continue
		}
		if !def.ArchCompatible(targetArch) {
			continue
		}
		out = append(out, Candidate{Version: def.Identity.Version, Handle: path})
	}
	return out, nil
}

func (f *File) GetDefinition(_ context.Context, handle DefinitionHandle) (pkgmodel.PackageDef, error) {
	path, ok := handle.(string)
	if !ok {
		return pkgmodel.PackageDef{}, &Error{RepositoryURL: f.root, Err: errInvalidHandle}
	}
	def, ok := f.defs[path]
	if !ok {
		return pkgmodel.PackageDef{}, &Error{RepositoryURL: f.root, Err: errInvalidHandle}
	}
	return def, nil
}

func (f *File) Names(context.Context) ([]string, error) {
	names := make([]string, 0, len(f.byName))
	for n := range f.byName {
		names = append(names, n)
	}
	return names, nil
}
