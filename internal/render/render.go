// Package render turns a CRIF into source text through a logic-less
// mustache template.
package render

import (
	_ "embed"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strings"

	"github.com/cbroglie/mustache"

	"github.com/chriserin/ftgen/internal/crif"
)

// DefaultTemplate renders Go testing code.
//
//go:embed templates/feature.go.mustache
var DefaultTemplate string

// DefaultTemplateName is the file name init writes DefaultTemplate to.
const DefaultTemplateName = "feature.go.mustache"

func init() {
	// A misspelled field in a template is an error, not an empty string.
	mustache.AllowMissingVariables = false
}

// Template is a compiled template, reusable across files and goroutines.
type Template struct {
	Name string
	tmpl *mustache.Template
}

// Compile parses text. Values are never HTML-escaped.
func Compile(name, text string) (*Template, error) {
	tmpl, err := mustache.ParseStringRaw(text, true)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return &Template{Name: name, tmpl: tmpl}, nil
}

// Load compiles the template file at path.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(path, string(data))
}

// Render renders file through the template.
func (t *Template) Render(file *crif.File) (string, error) {
	out, err := t.tmpl.Render(file)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name, err)
	}
	return out, nil
}

// OutputExt is the extension of files rendered by t: the template name
// with its .mustache suffix removed, e.g. ".go" for feature.go.mustache.
func (t *Template) OutputExt() string {
	base := strings.TrimSuffix(filepath.Base(t.Name), ".mustache")
	return filepath.Ext(base)
}

// Render compiles text and renders file in one step.
func Render(text string, file *crif.File) (string, error) {
	t, err := Compile("inline", text)
	if err != nil {
		return "", err
	}
	return t.Render(file)
}

// FormatGo runs gofmt over rendered Go source.
func FormatGo(src string) (string, error) {
	out, err := format.Source([]byte(src))
	if err != nil {
		return "", fmt.Errorf("formatting generated code: %w", err)
	}
	return string(out), nil
}
