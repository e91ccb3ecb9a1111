// Command image is the CLI front end for the image resolver: it parses an
// image document, populates the dependency cache from the requested
// repositories, and invokes the resolver (or, with --merge, the merge
// engine first). It owns no resolution logic of its own.
package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/cache"
	"github.com/Keysight/opentap/pkg/image"
	"github.com/Keysight/opentap/pkg/merge"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/repository"
	"github.com/Keysight/opentap/pkg/resolver"
)

// Exit codes: 0 success, a distinct code for an unsatisfiable or
// malformed dependency graph, 1 for any other resolve failure.
const (
	exitSuccess             = 0
	exitPackageDependency   = 3
	exitGenericResolveError = 1
)

func main() {
	log := logrus.New()

	app := &cli.App{
		Name:        "image",
		Usage:       "resolve a declarative package image to a concrete, installable set",
		Description: "image install <path-or-inline> resolves root package specifiers against one or more repositories.",
		Commands: []*cli.Command{
			installCommand(log),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("image")
		os.Exit(exitGenericResolveError)
	}
}

func installCommand(log *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "resolve an image document and print the resulting package set",
		ArgsUsage: "<path-or-inline>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "merge", Usage: "merge new roots into an existing installation instead of a clean resolve"},
			&cli.StringSliceFlag{Name: "installed", Usage: "(with --merge) a directory of *.pkgdef.toml files describing the current installation; repeatable"},
			&cli.BoolFlag{Name: "non-interactive", Usage: "fail instead of prompting on ambiguous input"},
			&cli.StringFlag{Name: "OS", Usage: "target operating system"},
			&cli.StringFlag{Name: "Architecture", Usage: "target CPU architecture"},
			&cli.BoolFlag{Name: "dry-run", Usage: "print the resolved name/version list without invoking deploy"},
			&cli.StringSliceFlag{Name: "repository", Usage: "repository URL or local directory to search; repeatable, highest priority first"},
			&cli.BoolFlag{Name: "debug", Usage: "enable verbose resolver tracing"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("debug") {
				log.SetLevel(logrus.DebugLevel)
			}
			exitCode, err := runInstall(c)
			if err != nil {
				log.WithError(err).Error("resolve failed")
			}
			if exitCode != exitSuccess {
				os.Exit(exitCode)
			}
			return nil
		},
	}
}

func runInstall(c *cli.Context) (int, error) {
	if c.NArg() < 1 {
		return exitGenericResolveError, errors.New("usage: image install <path-or-inline>")
	}

	doc, err := readDocument(c.Args().First())
	if err != nil {
		return exitGenericResolveError, errors.Wrap(err, "reading image document")
	}

	spec, err := image.ParseDocument(doc)
	if err != nil {
		return exitGenericResolveError, errors.Wrap(err, "parsing image document")
	}

	if v := c.String("OS"); v != "" {
		spec.OS = v
	}
	if v := c.String("Architecture"); v != "" {
		a, err := arch.Parse(v)
		if err != nil {
			return exitGenericResolveError, errors.Wrap(err, "parsing --Architecture")
		}
		spec.Arch = a
	}
	if repos := c.StringSlice("repository"); len(repos) > 0 {
		spec.Repositories = append(repos, spec.Repositories...)
	}

	if c.Bool("merge") {
		installed, err := loadInstalled(c.StringSlice("installed"))
		if err != nil {
			return exitGenericResolveError, errors.Wrap(err, "loading --installed")
		}
		fixed, seed, roots, err := merge.Merge(installed, spec.Roots)
		if err != nil {
			return exitGenericResolveError, errors.Wrap(err, "merge")
		}
		spec.Roots = roots
		spec.FixedPackages = append(spec.FixedPackages, fixed...)
		spec.InstalledPackages = append(spec.InstalledPackages, seed...)
	}

	repos, err := openRepositories(spec.Repositories)
	if err != nil {
		return exitGenericResolveError, errors.Wrap(err, "opening repositories")
	}

	names := rootNames(spec)
	ctx := context.Background()
	graph, err := cache.Populate(ctx, repos, names, spec.OS, spec.Arch, spec.InstalledPackages)
	if err != nil {
		return exitGenericResolveError, errors.Wrap(err, "populating dependency cache")
	}

	opts := resolver.Options{}
	if c.Bool("debug") {
		opts.TraceLogger = hclog.New(&hclog.LoggerOptions{Name: "resolver", Level: hclog.Debug})
	}

	res, err := resolver.Resolve(ctx, spec, graph, opts)
	if err != nil {
		return mapResolveError(err), err
	}
	if !res.Success {
		return exitPackageDependency, fmt.Errorf("resolution failed with %d conflict(s)", len(res.Conflicts))
	}

	id := image.NewIdentifier(res.Packages, spec.Repositories)
	return exitSuccess, printResult(id, c.Bool("dry-run"))
}

func mapResolveError(err error) int {
	switch err.(type) {
	case *resolver.DependencyUnsatisfiable, *resolver.ConstraintIntersectionEmpty, *resolver.PackageNotFound, *resolver.NoCompatibleVariant:
		return exitPackageDependency
	default:
		return exitGenericResolveError
	}
}

func rootNames(spec image.Specifier) []string {
	names := make([]string, 0, len(spec.Roots))
	for _, r := range spec.Roots {
		names = append(names, r.Name)
	}
	return names
}

func readDocument(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil || info.IsDir() {
		return arg, nil
	}
	raw, err := os.ReadFile(arg)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func loadInstalled(dirs []string) ([]pkgmodel.PackageDef, error) {
	var out []pkgmodel.PackageDef
	for _, dir := range dirs {
		f, err := repository.NewFile(dir)
		if err != nil {
			return nil, err
		}
		names, err := f.Names(context.Background())
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			cands, err := f.ListVersions(context.Background(), name, "", arch.Unspecified)
			if err != nil {
				return nil, err
			}
			for _, cand := range cands {
				def, err := f.GetDefinition(context.Background(), cand.Handle)
				if err != nil {
					return nil, err
				}
				out = append(out, def)
			}
		}
	}
	return out, nil
}

func openRepositories(urls []string) ([]repository.Repository, error) {
	repos := make([]repository.Repository, 0, len(urls))
	for _, u := range urls {
		if info, err := os.Stat(u); err == nil && info.IsDir() {
			f, err := repository.NewFile(u)
			if err != nil {
				return nil, err
			}
			repos = append(repos, f)
			continue
		}

		// A bare VCS remote carries one package; its name is the last path
		// segment of the URL (as with a Go module's import path).
		name := strings.TrimSuffix(path.Base(u), ".git")
		v, err := repository.NewVCS(u, os.TempDir(), name)
		if err != nil {
			return nil, err
		}
		repos = append(repos, v)
	}
	return repos, nil
}

func printResult(id image.Identifier, dryRun bool) error {
	var b strings.Builder
	b.WriteString("| Package | Version |\n|---|---|\n")
	for _, p := range id.Packages() {
		fmt.Fprintf(&b, "| %s | %s |\n", p.Identity.Name, p.Identity.Version)
	}

	if !dryRun {
		fmt.Println(b.String())
		return nil
	}

	rendered, err := glamour.Render(b.String(), "dark")
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}
