package crif

import (
	"strconv"

	"github.com/chriserin/ftgen/internal/catalog"
)

// reserved package names are imported by the generated file itself.
var reserved = []string{"testing", "errors", "os", "fmt"}

// importSet keeps imports in first-seen order and assigns each path a
// qualifier that does not collide with any other.
type importSet struct {
	list   []*Import
	byPath map[string]*Import
	taken  map[string]string
}

func newImportSet() *importSet {
	s := &importSet{
		byPath: make(map[string]*Import),
		taken:  make(map[string]string),
	}
	for _, name := range reserved {
		s.taken[name] = name
	}
	s.taken["table"] = catalog.TablePackage
	return s
}

// use records path as referenced under name and returns the qualifier the
// generated code must use. An empty name picks the default.
func (s *importSet) use(path, name string) string {
	if name == "" {
		name = catalog.ImportName(path)
	}
	if imp, ok := s.byPath[path]; ok {
		if imp.Alias == "_" {
			imp.Name, imp.Alias = s.claim(path, name)
		}
		return imp.Name
	}
	imp := &Import{Path: path}
	imp.Name, imp.Alias = s.claim(path, name)
	s.add(imp)
	return imp.Name
}

// blank records a side-effect import requested by a tag.
func (s *importSet) blank(path string) {
	if _, ok := s.byPath[path]; ok {
		return
	}
	s.add(&Import{Path: path, Alias: "_"})
}

func (s *importSet) add(imp *Import) {
	s.byPath[imp.Path] = imp
	s.list = append(s.list, imp)
}

func (s *importSet) claim(path, name string) (qualifier, alias string) {
	qualifier = name
	for i := 2; ; i++ {
		owner, ok := s.taken[qualifier]
		if !ok || owner == path {
			break
		}
		qualifier = name + strconv.Itoa(i)
	}
	s.taken[qualifier] = path
	if qualifier != catalog.ImportName(path) {
		alias = qualifier
	}
	return qualifier, alias
}

func (s *importSet) imports() []Import {
	out := make([]Import, 0, len(s.list))
	for _, imp := range s.list {
		spec := strconv.Quote(imp.Path)
		if imp.Alias != "" {
			spec = imp.Alias + " " + spec
		}
		out = append(out, Import{Path: imp.Path, Name: imp.Name, Alias: imp.Alias, Spec: spec})
	}
	return out
}
