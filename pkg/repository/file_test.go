package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Keysight/opentap/pkg/arch"
)

func writeDef(t *testing.T, dir, name, contents string) {
	t.Helper()
	path := filepath.Join(dir, name+defFileSuffix)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
}

func TestFileRepository(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "demo", `
name = "demo"
version = "1.2.0"
os = "linux"
architecture = "x64"

[[dependency]]
name = "base"
version = "^1.0.0"
`)

	repo, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	ctx := context.Background()
	cands, err := repo.ListVersions(ctx, "demo", "linux", arch.X64)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}

	def, err := repo.GetDefinition(ctx, cands[0].Handle)
	if err != nil {
		t.Fatalf("GetDefinition: %v", err)
	}
	if def.Identity.Name != "demo" || len(def.Dependencies) != 1 {
		t.Fatalf("unexpected def: %+v", def)
	}
	if def.LocalPath == "" {
		t.Error("expected LocalPath to be set for a file-backed definition")
	}

	if _, err := repo.ListVersions(ctx, "demo", "windows", arch.X64); err != nil {
		t.Fatalf("ListVersions wrong OS: %v", err)
	} else if cands, _ := repo.ListVersions(ctx, "demo", "windows", arch.X64); len(cands) != 0 {
		t.Error("expected no candidates for a mismatched OS")
	}
}

func TestFileRepositoryNames(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "a", `name = "a"
version = "1.0.0"
os = "linux"
architecture = "any"
`)
	writeDef(t, dir, "b", `name = "b"
version = "2.0.0"
os = "linux"
architecture = "any"
`)

	repo, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	names, err := repo.Names(context.Background())
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
}
