package image

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Keysight/opentap/pkg/arch"
	"github.com/Keysight/opentap/pkg/pkgmodel"
	"github.com/Keysight/opentap/pkg/version"
)

// schemaDoc is the canonical shape all three input formats deserialize
// into before being turned into a Specifier.
type schemaDoc struct {
	Packages     []packageDoc `json:"packages" xml:"Package"`
	Repositories []string     `json:"repositories,omitempty" xml:"Repository,omitempty"`
	OS           string       `json:"os,omitempty" xml:"OS,attr,omitempty"`
	Architecture string       `json:"architecture,omitempty" xml:"Architecture,attr,omitempty"`
}

type packageDoc struct {
	Name         string `json:"name" xml:"Name,attr"`
	Version      string `json:"version,omitempty" xml:"Version,attr,omitempty"`
	OS           string `json:"os,omitempty" xml:"OS,attr,omitempty"`
	Architecture string `json:"architecture,omitempty" xml:"Architecture,attr,omitempty"`
}

// imageSchema is the JSON Schema validated against before unmarshalling a
// JSON image document: it rejects a package entry without a non-empty name
// and fields of the wrong type. It does not require "packages" and allows
// unknown keys, so a document without a "packages" key yields an empty
// root list.
const imageSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"packages": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"version": {"type": "string"},
					"os": {"type": "string"},
					"architecture": {"type": "string"}
				}
			}
		},
		"repositories": {"type": "array", "items": {"type": "string"}},
		"os": {"type": "string"},
		"architecture": {"type": "string"}
	}
}`

var compiledImageSchema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("image.json", strings.NewReader(imageSchema)); err != nil {
		panic(err)
	}
	schema, err := c.Compile("image.json")
	if err != nil {
		panic(err)
	}
	return schema
}()

// ParseDocument auto-detects and parses an image document: leading '<' is
// XML, leading '[' or '{' is JSON, anything else is the comma-separated
// shorthand "name[:version][,name[:version]...]". The
// result may still need a target OS/architecture (always, for the shorthand
// form, along with a repository list) layered on by the caller before it
// is resolved; ParseDocument does not apply SpecifierBuilder's checks.
func ParseDocument(doc string) (Specifier, error) {
	trimmed := strings.TrimSpace(doc)
	if trimmed == "" {
		return Specifier{}, fmt.Errorf("image document: empty input")
	}

	switch trimmed[0] {
	case '<':
		return parseXML(trimmed)
	case '[', '{':
		return parseJSON(trimmed)
	default:
		return parseShorthand(trimmed)
	}
}

func parseXML(doc string) (Specifier, error) {
	var d schemaDoc
	if err := xml.Unmarshal([]byte(doc), &d); err != nil {
		return Specifier{}, fmt.Errorf("image document: invalid XML: %w", err)
	}
	return docToSpecifier(d)
}

func parseJSON(doc string) (Specifier, error) {
	var generic interface{}
	if err := json.Unmarshal([]byte(doc), &generic); err != nil {
		return Specifier{}, fmt.Errorf("image document: invalid JSON: %w", err)
	}
	if err := compiledImageSchema.Validate(generic); err != nil {
		return Specifier{}, fmt.Errorf("image document: schema validation failed: %w", err)
	}

	var d schemaDoc
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return Specifier{}, fmt.Errorf("image document: invalid JSON: %w", err)
	}
	return docToSpecifier(d)
}

// parseShorthand parses "name[:version][,name[:version]...]".
func parseShorthand(doc string) (Specifier, error) {
	var d schemaDoc
	for _, entry := range strings.Split(doc, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		pd := packageDoc{Name: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			pd.Version = strings.TrimSpace(parts[1])
		}
		d.Packages = append(d.Packages, pd)
	}
	return docToSpecifier(d)
}

func docToSpecifier(d schemaDoc) (Specifier, error) {
	a, err := arch.Parse(d.Architecture)
	if err != nil {
		return Specifier{}, fmt.Errorf("image document: %w", err)
	}

	spec := Specifier{
		OS:           d.OS,
		Arch:         a,
		Repositories: d.Repositories,
	}

	for _, p := range d.Packages {
		root, err := versionSpecifierOf(p)
		if err != nil {
			return Specifier{}, err
		}
		spec.Roots = append(spec.Roots, root)
	}

	return spec, nil
}

func versionSpecifierOf(p packageDoc) (pkgmodel.PackageSpecifier, error) {
	vs, err := version.ParseSpecifier(p.Version)
	if err != nil {
		return pkgmodel.PackageSpecifier{}, fmt.Errorf("image document: package %q: %w", p.Name, err)
	}
	a, err := arch.Parse(p.Architecture)
	if err != nil {
		return pkgmodel.PackageSpecifier{}, fmt.Errorf("image document: package %q: %w", p.Name, err)
	}
	return pkgmodel.PackageSpecifier{Name: p.Name, Version: vs, Arch: a, OS: p.OS}, nil
}
