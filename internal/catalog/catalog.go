// Package catalog discovers step definitions in source code. A definition
// binds a Given/When/Then pattern to a method on an owner type.
package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// TablePackage is the import path of the data table type step methods
// accept as their last parameter.
const TablePackage = "github.com/chriserin/ftgen/pkg/table"

// PlaceholderPattern finds {name} holes in a step pattern.
var PlaceholderPattern = regexp.MustCompile(`\{[^{}\s]+\}`)

// Definition is one step unit discovered in source. It is never mutated
// once the catalog is built.
type Definition struct {
	Keyword      string  `json:"keyword" yaml:"keyword"`
	Pattern      string  `json:"pattern" yaml:"pattern"`
	Owner        string  `json:"owner" yaml:"owner"`
	Namespace    string  `json:"namespace,omitempty" yaml:"namespace"`
	Package      string  `json:"package,omitempty" yaml:"package"`
	Method       string  `json:"method" yaml:"method"`
	Params       []Param `json:"params,omitempty" yaml:"params"`
	ReturnsError bool    `json:"returnsError,omitempty" yaml:"returns_error"`
	Source       string  `json:"source,omitempty" yaml:"-"`
}

// Param is a declared method parameter in declaration order.
type Param struct {
	Type   string `json:"type" yaml:"type"`
	Name   string `json:"name" yaml:"name"`
	Import string `json:"import,omitempty" yaml:"import"`
	Table  bool   `json:"table,omitempty" yaml:"table"`
}

// Placeholders returns the {name} placeholders of the pattern in order.
func (d *Definition) Placeholders() []string {
	var names []string
	for _, m := range PlaceholderPattern.FindAllString(d.Pattern, -1) {
		names = append(names, m[1:len(m)-1])
	}
	return names
}

// TakesTable reports whether the last parameter receives a data table.
func (d *Definition) TakesTable() bool {
	return len(d.Params) > 0 && d.Params[len(d.Params)-1].Table
}

// Bindable returns the parameters that receive placeholder captures.
func (d *Definition) Bindable() []Param {
	if d.TakesTable() {
		return d.Params[:len(d.Params)-1]
	}
	return d.Params
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s %q -> %s.%s", d.Keyword, d.Pattern, d.Owner, d.Method)
}

// Catalog is the ordered, read-only set of definitions for one run.
type Catalog struct {
	defs []Definition
}

// New wraps definitions, keeping their order.
func New(defs []Definition) *Catalog {
	return &Catalog{defs: defs}
}

// Definitions returns the definitions in registration order. Callers must
// not modify the returned slice.
func (c *Catalog) Definitions() []Definition {
	if c == nil {
		return nil
	}
	return c.defs
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.defs)
}

// Extractor reads step definitions from one kind of source unit.
type Extractor interface {
	Name() string
	Match(path string) bool
	Extract(path string, src []byte) ([]Definition, error)
}

// Build walks roots in lexical order and hands every file to the first
// extractor that claims it. Files that fail to parse and definitions whose
// pattern does not fit their parameters are skipped.
func Build(ctx context.Context, log logrus.FieldLogger, roots []string, extractors ...Extractor) (*Catalog, error) {
	var files []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("step source %s: %w", root, err)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "vendor" || d.Name() == "testdata") {
					return filepath.SkipDir
				}
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
	}
	sort.Strings(files)

	var defs []Definition
	seen := make(map[string]bool)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[path] {
			continue
		}
		seen[path] = true

		ex := pick(extractors, path)
		if ex == nil {
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		found, err := ex.Extract(path, src)
		if err != nil {
			log.WithField("file", path).WithError(err).Debug("skipping unparsable step source")
			continue
		}
		for _, d := range found {
			if err := validate(&d); err != nil {
				log.WithField("source", d.Source).Debugf("skipping step %s: %v", d.Method, err)
				continue
			}
			defs = append(defs, d)
		}
	}
	log.WithField("definitions", len(defs)).Debug("step catalog built")
	return New(defs), nil
}

func pick(extractors []Extractor, path string) Extractor {
	for _, ex := range extractors {
		if ex.Match(path) {
			return ex
		}
	}
	return nil
}

func validate(d *Definition) error {
	switch {
	case d.Pattern == "":
		return fmt.Errorf("empty pattern")
	case d.Owner == "" || d.Method == "":
		return fmt.Errorf("missing owner or method")
	}
	for i, p := range d.Params {
		if p.Table && i != len(d.Params)-1 {
			return fmt.Errorf("table parameter %s must be last", p.Name)
		}
	}
	if got, want := len(d.Placeholders()), len(d.Bindable()); got != want {
		return fmt.Errorf("pattern has %d placeholders for %d parameters", got, want)
	}
	return nil
}

// NormalizeKeyword maps a marker name such as "given", "WhenStep" or
// "ThenAttribute" to Given, When or Then.
func NormalizeKeyword(marker string) (string, bool) {
	name := strings.TrimSpace(marker)
	for _, suffix := range []string{"Attribute", "attribute", "Step", "step"} {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok && trimmed != "" {
			name = trimmed
			break
		}
	}
	switch strings.ToLower(name) {
	case "given":
		return "Given", true
	case "when":
		return "When", true
	case "then":
		return "Then", true
	}
	return "", false
}

// Extractors returns the extractors registered under names, in the given
// order. An empty list selects go, csharp and manifest.
func Extractors(names []string) ([]Extractor, error) {
	if len(names) == 0 {
		names = []string{"go", "csharp", "manifest"}
	}
	var out []Extractor
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "go":
			out = append(out, NewGoExtractor())
		case "csharp", "cs":
			out = append(out, NewCSharpExtractor())
		case "manifest", "yaml":
			out = append(out, ManifestExtractor{})
		default:
			return nil, fmt.Errorf("unknown step extractor %q", name)
		}
	}
	return out, nil
}
