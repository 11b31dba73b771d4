package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestSuffix names YAML step manifests, used for step libraries whose
// source is not available to scan.
const ManifestSuffix = ".steps.yaml"

type manifest struct {
	Namespace string          `yaml:"namespace"`
	Package   string          `yaml:"package"`
	Owners    []manifestOwner `yaml:"owners"`
}

type manifestOwner struct {
	Name  string         `yaml:"name"`
	Steps []manifestStep `yaml:"steps"`
}

type manifestStep struct {
	Given        string  `yaml:"given"`
	When         string  `yaml:"when"`
	Then         string  `yaml:"then"`
	Method       string  `yaml:"method"`
	Params       []Param `yaml:"params"`
	ReturnsError bool    `yaml:"returns_error"`
}

type ManifestExtractor struct{}

func (ManifestExtractor) Name() string { return "manifest" }

func (ManifestExtractor) Match(path string) bool {
	return strings.HasSuffix(path, ManifestSuffix)
}

func (ManifestExtractor) Extract(path string, src []byte) ([]Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	var m manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	pkg := m.Package
	if pkg == "" && m.Namespace != "" {
		pkg = ImportName(m.Namespace)
	}

	var defs []Definition
	for _, owner := range m.Owners {
		for i, s := range owner.Steps {
			for _, kp := range [][2]string{{"Given", s.Given}, {"When", s.When}, {"Then", s.Then}} {
				if kp[1] == "" {
					continue
				}
				defs = append(defs, Definition{
					Keyword:      kp[0],
					Pattern:      kp[1],
					Owner:        owner.Name,
					Namespace:    m.Namespace,
					Package:      pkg,
					Method:       s.Method,
					Params:       markTables(s.Params),
					ReturnsError: s.ReturnsError,
					Source:       fmt.Sprintf("%s:%s[%d]", path, owner.Name, i),
				})
			}
		}
	}
	return defs, nil
}

func markTables(params []Param) []Param {
	if len(params) == 0 {
		return nil
	}
	out := make([]Param, len(params))
	for i, p := range params {
		if p.Type == "*table.Table" && p.Import == "" {
			p.Import = TablePackage
		}
		p.Table = p.Table || (p.Import == TablePackage && p.Type == "*table.Table")
		out[i] = p
	}
	return out
}
