package catalog

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

// CSharpExtractor reads [Given]/[When]/[Then] attributed methods from C#
// step binding classes. Owners are class names, namespaces come from the
// enclosing namespace declaration.
type CSharpExtractor struct {
	parser *sitter.Parser
}

func NewCSharpExtractor() *CSharpExtractor {
	p := sitter.NewParser()
	p.SetLanguage(csharp.GetLanguage())
	return &CSharpExtractor{parser: p}
}

func (*CSharpExtractor) Name() string { return "csharp" }

func (*CSharpExtractor) Match(path string) bool {
	return strings.HasSuffix(path, ".cs")
}

func (c *CSharpExtractor) Extract(path string, src []byte) ([]Definition, error) {
	tree, err := c.parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("syntax error in %s", path)
	}

	w := &csharpWalker{path: path, src: src}
	w.walk(root, "", "")
	return w.defs, nil
}

type csharpWalker struct {
	path string
	src  []byte
	defs []Definition
}

func (w *csharpWalker) text(n *sitter.Node) string {
	return n.Content(w.src)
}

func (w *csharpWalker) walk(n *sitter.Node, namespace, class string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "namespace_declaration":
			if name := child.ChildByFieldName("name"); name != nil {
				w.walk(child, joinNamespace(namespace, w.text(name)), class)
			}
		case "file_scoped_namespace_declaration":
			if name := child.ChildByFieldName("name"); name != nil {
				namespace = joinNamespace(namespace, w.text(name))
			}
			w.walk(child, namespace, class)
		case "class_declaration":
			if name := child.ChildByFieldName("name"); name != nil {
				w.walk(child, namespace, w.text(name))
			}
		case "method_declaration":
			if class != "" {
				w.method(child, namespace, class)
			}
		default:
			w.walk(child, namespace, class)
		}
	}
}

func (w *csharpWalker) method(n *sitter.Node, namespace, class string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	params := w.params(n.ChildByFieldName("parameters"))

	for i := 0; i < int(n.NamedChildCount()); i++ {
		list := n.NamedChild(i)
		if list.Type() != "attribute_list" {
			continue
		}
		for j := 0; j < int(list.NamedChildCount()); j++ {
			attr := list.NamedChild(j)
			if attr.Type() != "attribute" {
				continue
			}
			keyword, pattern, ok := w.attribute(attr)
			if !ok {
				continue
			}
			w.defs = append(w.defs, Definition{
				Keyword:   keyword,
				Pattern:   pattern,
				Owner:     class,
				Namespace: namespace,
				Package:   lastSegment(namespace),
				Method:    w.text(nameNode),
				Params:    params,
				Source:    fmt.Sprintf("%s:%d", w.path, attr.StartPoint().Row+1),
			})
		}
	}
}

// attribute reads [Given("pattern")] style attributes. The marker may be
// qualified or carry the Attribute suffix.
func (w *csharpWalker) attribute(attr *sitter.Node) (keyword, pattern string, ok bool) {
	name := attr.ChildByFieldName("name")
	if name == nil {
		return "", "", false
	}
	keyword, ok = NormalizeKeyword(lastSegment(w.text(name)))
	if !ok {
		return "", "", false
	}
	var args *sitter.Node
	for i := 0; i < int(attr.NamedChildCount()); i++ {
		if c := attr.NamedChild(i); c.Type() == "attribute_argument_list" {
			args = c
			break
		}
	}
	if args == nil || args.NamedChildCount() == 0 {
		return "", "", false
	}
	pattern, ok = csharpString(w.text(args.NamedChild(0)))
	return keyword, pattern, ok
}

func (w *csharpWalker) params(list *sitter.Node) []Param {
	if list == nil {
		return nil
	}
	var params []Param
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		if p.Type() != "parameter" {
			continue
		}
		var param Param
		if t := p.ChildByFieldName("type"); t != nil {
			param.Type = w.text(t)
		}
		if n := p.ChildByFieldName("name"); n != nil {
			param.Name = w.text(n)
		}
		switch lastSegment(param.Type) {
		case "Table", "DataTable":
			param.Table = true
		}
		params = append(params, param)
	}
	return params
}

// csharpString decodes a regular, verbatim or raw C# string literal.
func csharpString(lit string) (string, bool) {
	lit = strings.TrimSpace(lit)
	switch {
	case strings.HasPrefix(lit, `"""`) && strings.HasSuffix(lit, `"""`) && len(lit) >= 6:
		return strings.TrimSpace(lit[3 : len(lit)-3]), true
	case strings.HasPrefix(lit, `@"`) && strings.HasSuffix(lit, `"`) && len(lit) >= 3:
		return strings.ReplaceAll(lit[2:len(lit)-1], `""`, `"`), true
	case strings.HasPrefix(lit, `"`) && strings.HasSuffix(lit, `"`) && len(lit) >= 2:
		body := lit[1 : len(lit)-1]
		var b strings.Builder
		escaped := false
		for _, r := range body {
			if escaped {
				switch r {
				case 'n':
					b.WriteRune('\n')
				case 't':
					b.WriteRune('\t')
				default:
					b.WriteRune(r)
				}
				escaped = false
				continue
			}
			if r == '\\' {
				escaped = true
				continue
			}
			b.WriteRune(r)
		}
		return b.String(), true
	}
	return "", false
}

func joinNamespace(outer, inner string) string {
	if outer == "" {
		return inner
	}
	return outer + "." + inner
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
