package catalog

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/ast/inspector"
)

// DirectivePrefix marks a step directive in a method's doc comment:
//
//	//ftgen:given "I have {amount} dollars in {account}"
//	func (s *AccountSteps) HaveDollars(amount int, account string) error
const DirectivePrefix = "//ftgen:"

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// GoExtractor reads step directives from Go source files. Owners are the
// receiver types of annotated methods; their namespace is the package
// import path derived from the enclosing go.mod.
type GoExtractor struct {
	modules map[string]module
}

type module struct {
	dir  string
	path string
}

func NewGoExtractor() *GoExtractor {
	return &GoExtractor{modules: make(map[string]module)}
}

func (*GoExtractor) Name() string { return "go" }

func (*GoExtractor) Match(p string) bool {
	return strings.HasSuffix(p, ".go") && !strings.HasSuffix(p, "_test.go")
}

func (g *GoExtractor) Extract(filename string, src []byte) ([]Definition, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	importPath := g.importPath(filename)
	imports := fileImports(file)

	var defs []Definition
	in := inspector.New([]*ast.File{file})
	in.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fn := n.(*ast.FuncDecl)
		if fn.Recv == nil || len(fn.Recv.List) != 1 || fn.Doc == nil {
			return
		}
		owner := receiverName(fn.Recv.List[0].Type)
		if !ast.IsExported(owner) || !fn.Name.IsExported() {
			return
		}
		for _, c := range fn.Doc.List {
			keyword, pattern, ok := parseDirective(c.Text)
			if !ok {
				continue
			}
			defs = append(defs, Definition{
				Keyword:      keyword,
				Pattern:      pattern,
				Owner:        owner,
				Namespace:    importPath,
				Package:      file.Name.Name,
				Method:       fn.Name.Name,
				Params:       goParams(fn.Type.Params, imports),
				ReturnsError: returnsError(fn.Type.Results),
				Source:       fmt.Sprintf("%s:%d", filename, fset.Position(c.Pos()).Line),
			})
		}
	})
	return defs, nil
}

// parseDirective reads `//ftgen:<marker> "<pattern>"`.
func parseDirective(text string) (keyword, pattern string, ok bool) {
	rest, found := strings.CutPrefix(text, DirectivePrefix)
	if !found {
		return "", "", false
	}
	marker, quoted, _ := strings.Cut(rest, " ")
	keyword, ok = NormalizeKeyword(marker)
	if !ok {
		return "", "", false
	}
	pattern, err := strconv.Unquote(strings.TrimSpace(quoted))
	if err != nil {
		return "", "", false
	}
	return keyword, pattern, true
}

func receiverName(expr ast.Expr) string {
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}

func goParams(fields *ast.FieldList, imports map[string]string) []Param {
	if fields == nil {
		return nil
	}
	var params []Param
	for _, field := range fields.List {
		p := Param{Type: types.ExprString(field.Type)}
		if pkg := qualifier(field.Type); pkg != "" {
			p.Import = imports[pkg]
		}
		p.Table = p.Import == TablePackage && p.Type == "*table.Table"
		if len(field.Names) == 0 {
			p.Name = fmt.Sprintf("arg%d", len(params))
			params = append(params, p)
			continue
		}
		for _, name := range field.Names {
			p.Name = name.Name
			params = append(params, p)
		}
	}
	return params
}

// qualifier returns the package name of a selector type such as
// *money.Amount or []time.Duration.
func qualifier(expr ast.Expr) string {
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.ArrayType:
			expr = e.Elt
		case *ast.SelectorExpr:
			if id, ok := e.X.(*ast.Ident); ok {
				return id.Name
			}
			return ""
		default:
			return ""
		}
	}
}

func returnsError(results *ast.FieldList) bool {
	if results == nil || len(results.List) != 1 || len(results.List[0].Names) > 1 {
		return false
	}
	id, ok := results.List[0].Type.(*ast.Ident)
	return ok && id.Name == "error"
}

func fileImports(file *ast.File) map[string]string {
	imports := make(map[string]string)
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := ImportName(p)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		imports[name] = p
	}
	return imports
}

// ImportName guesses the package name of an import path the way goimports
// does when no name is given.
func ImportName(p string) string {
	base := path.Base(p)
	if majorVersion.MatchString(base) {
		base = path.Base(path.Dir(p))
	}
	if i := strings.LastIndex(base, "."); i > 0 && majorVersion.MatchString(base[i+1:]) {
		base = base[:i]
	}
	return strings.TrimPrefix(base, "go-")
}

// importPath derives the package import path from the nearest go.mod.
// It falls back to the directory name when no module is found.
func (g *GoExtractor) importPath(filename string) string {
	dir, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		return filepath.Base(filepath.Dir(filename))
	}
	mod, ok := g.findModule(dir)
	if !ok {
		return filepath.Base(dir)
	}
	rel, err := filepath.Rel(mod.dir, dir)
	if err != nil || rel == "." {
		return mod.path
	}
	return mod.path + "/" + filepath.ToSlash(rel)
}

func (g *GoExtractor) findModule(dir string) (module, bool) {
	if mod, ok := g.modules[dir]; ok {
		return mod, mod.path != ""
	}
	var mod module
	if data, err := os.ReadFile(filepath.Join(dir, "go.mod")); err == nil {
		if mp := modfile.ModulePath(data); mp != "" {
			mod = module{dir: dir, path: mp}
		}
	} else if parent := filepath.Dir(dir); parent != dir {
		mod, _ = g.findModule(parent)
	}
	g.modules[dir] = mod
	return mod, mod.path != ""
}
