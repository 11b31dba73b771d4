package crif

import (
	"fmt"
	"go/token"
	"regexp"
	"strconv"
	"strings"

	"github.com/chriserin/ftgen/internal/catalog"
	"github.com/chriserin/ftgen/internal/match"
	"github.com/chriserin/ftgen/internal/parser"
)

// DefaultPackage is the package of generated files without a
// @namespace tag.
const DefaultPackage = "features"

var (
	outlineToken = regexp.MustCompile(`<([^<>]+)>`)
	intLiteral   = regexp.MustCompile(`^[+-]?[0-9]+$`)
	floatLiteral = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)
)

type Options struct {
	SourceFile string
	// Package overrides DefaultPackage; a @namespace tag overrides both.
	Package string
}

// Convert walks doc and resolves every step through m. Unmatched steps
// become stubs; only malformed tags and tables are errors.
func Convert(doc *parser.Document, m *match.Matcher, opts Options) (*File, error) {
	if doc == nil || doc.Feature == nil {
		return nil, fmt.Errorf("document has no Feature")
	}
	pkg := opts.Package
	if pkg == "" {
		pkg = DefaultPackage
	}
	c := &converter{
		m: m,
		file: &File{
			SourceFile: opts.SourceFile,
			Package:    pkg,
		},
		imports:   newImportSet(),
		classes:   make(map[string]int),
		classVars: names{"t": true, "tc": true, "f": true},
		stubs:     make(map[stubKey]int),
		stubNames: names{},
		idents:    names{},
		ruleNames: names{},
	}
	if err := c.convert(doc.Feature); err != nil {
		return nil, err
	}
	return c.finish(), nil
}

type stubKey struct {
	keyword string
	text    string
}

type converter struct {
	m    *match.Matcher
	file *File

	imports   *importSet
	classes   map[string]int
	classVars names
	stubs     map[stubKey]int
	stubNames names
	idents    names
	ruleNames names

	explicitFeature bool
}

// method tracks state scoped to one generated method.
type method struct {
	params  map[string]Param
	tables  int
	primary string
}

func (c *converter) convert(f *parser.Feature) error {
	c.file.Feature = Feature{
		Name:        f.Header.Name,
		Ident:       pascal(f.Header.Name),
		Description: lines(f.Header.Description),
	}
	if c.file.Feature.Ident == "" {
		c.file.Feature.Ident = "Feature"
	}
	if err := c.featureTags(f.Header.Tags); err != nil {
		return err
	}

	if f.Background != nil {
		bg, err := c.method("background", nil, f.Background.Steps)
		if err != nil {
			return err
		}
		c.file.Background = bg
		c.file.Methods = append(c.file.Methods, bg)
	}

	var bare *Rule
	for _, child := range f.Children {
		switch {
		case child.Scenario != nil:
			if bare == nil {
				c.file.Rules = append(c.file.Rules, Rule{})
				bare = &c.file.Rules[len(c.file.Rules)-1]
			}
			sc, err := c.scenario(child.Scenario, "", false)
			if err != nil {
				return err
			}
			bare.Scenarios = append(bare.Scenarios, sc)
		case child.Rule != nil:
			bare = nil
			rule, err := c.rule(child.Rule)
			if err != nil {
				return err
			}
			c.file.Rules = append(c.file.Rules, rule)
		}
	}
	return nil
}

func (c *converter) featureTags(tags []parser.Tag) error {
	for _, tag := range tags {
		name := strings.TrimPrefix(tag.Name, "@")
		key, value, hasValue := strings.Cut(name, ":")
		switch strings.ToLower(key) {
		case "namespace":
			if !hasValue || !token.IsIdentifier(value) {
				return &TagError{Tag: tag.Name, Reason: "namespace must be a package name"}
			}
			c.file.Namespace = value
			c.file.Package = value
		case "baseclass":
			if err := c.baseClass(tag.Name, value); err != nil {
				return err
			}
		case "using":
			if !validImportPath(value) {
				return &TagError{Tag: tag.Name, Reason: "using must name an import path"}
			}
			c.imports.blank(value)
		case "explicit":
			c.explicitFeature = true
			c.file.Feature.Tags = append(c.file.Feature.Tags, name)
		default:
			c.file.Feature.Tags = append(c.file.Feature.Tags, name)
		}
	}
	return nil
}

// baseClass splits "example.com/kit.Suite" into an import and a type.
func (c *converter) baseClass(tag, value string) error {
	slash := strings.LastIndex(value, "/")
	typ := value[slash+1:]
	path := ""
	if dot := strings.LastIndex(typ, "."); dot >= 0 {
		path = value[:slash+1+dot]
		typ = typ[dot+1:]
	}
	if !token.IsIdentifier(typ) || (slash >= 0 && path == "") {
		return &TagError{Tag: tag, Reason: "baseclass must be [import/path.]Type"}
	}
	if path != "" {
		if !validImportPath(path) {
			return &TagError{Tag: tag, Reason: "baseclass has an invalid import path"}
		}
		typ = c.imports.use(path, "") + "." + typ
	}
	c.file.BaseClass = typ
	c.file.HasBaseClass = true
	return nil
}

func validImportPath(p string) bool {
	return p != "" && !strings.ContainsAny(p, " \t\"`\\") && !strings.HasSuffix(p, "/")
}

func (c *converter) rule(r *parser.Rule) (Rule, error) {
	rule := Rule{
		Name:        r.Name,
		HasName:     r.Name != "",
		Ident:       c.ruleNames.unique(orDefault(pascal(r.Name), "Rule")),
		Description: lines(r.Description),
	}
	explicit := hasTag(r.Tags, "explicit")

	setup := ""
	if r.Background != nil {
		bg, err := c.method("background"+rule.Ident, nil, r.Background.Steps)
		if err != nil {
			return rule, err
		}
		rule.Background = bg
		c.file.Methods = append(c.file.Methods, bg)
		setup = bg.Name
	}
	for i := range r.Scenarios {
		sc, err := c.scenario(&r.Scenarios[i], setup, explicit)
		if err != nil {
			return rule, err
		}
		rule.Scenarios = append(rule.Scenarios, sc)
	}
	return rule, nil
}

func (c *converter) scenario(def *parser.ScenarioDefinition, setup string, explicit bool) (Scenario, error) {
	src := def.Scenario
	sc := Scenario{
		Name:         src.Name,
		Ident:        c.idents.unique(orDefault(pascal(src.Name), "Scenario")),
		ExplicitTag:  explicit || c.explicitFeature,
		Remarks:      lines(src.Description),
		RuleSetup:    setup,
		HasRuleSetup: setup != "",
	}
	sc.Method = "scenario" + sc.Ident
	sc.HasRemarks = len(sc.Remarks) > 0

	for _, tag := range def.Tags {
		name := strings.TrimPrefix(tag.Name, "@")
		if strings.EqualFold(name, "explicit") {
			sc.ExplicitTag = true
			continue
		}
		sc.Tags = append(sc.Tags, name)
	}
	if sc.ExplicitTag {
		c.file.HasExplicit = true
	}

	if src.Outline {
		if err := c.examples(&sc, src.Examples); err != nil {
			return sc, err
		}
		c.file.HasOutline = true
	}

	m, err := c.method(sc.Method, sc.Params, src.Steps)
	if err != nil {
		return sc, err
	}
	sc.Steps = m.Steps
	c.file.Methods = append(c.file.Methods, m)
	return sc, nil
}

// examples turns the Examples blocks of an outline into string parameters
// and one test case per data row.
func (c *converter) examples(sc *Scenario, blocks []parser.Examples) error {
	sc.IsOutline = true
	var header []string
	idents := names{"t": true, "tc": true, "f": true, "name": true}
	for _, ex := range blocks {
		if len(ex.HeaderRow) == 0 {
			return &TableError{Line: ex.Line, Reason: "Examples has no header row"}
		}
		if header == nil {
			header = ex.HeaderRow
			for _, h := range header {
				sc.Params = append(sc.Params, Param{
					Name:  h,
					Ident: idents.unique("p" + orDefault(pascal(h), "Param")),
					Type:  "string",
				})
			}
		} else if strings.Join(header, "|") != strings.Join(ex.HeaderRow, "|") {
			return &TableError{Line: ex.Line, Reason: "Examples headers differ from the first Examples block"}
		}
		for _, row := range ex.Rows {
			if len(row) != len(header) {
				return &TableError{Line: ex.Line, Reason: fmt.Sprintf("Examples row has %d cells, header has %d", len(row), len(header))}
			}
			tc := TestCase{Name: strconv.Quote(strings.Join(row, ","))}
			for _, v := range row {
				tc.Values = append(tc.Values, Value{Raw: v, Quoted: strconv.Quote(v)})
			}
			tc.Values[len(tc.Values)-1].Last = true
			sc.TestCases = append(sc.TestCases, tc)
		}
	}
	if len(sc.Params) > 0 {
		sc.Params[len(sc.Params)-1].Last = true
	}
	if len(sc.TestCases) > 0 {
		sc.TestCases[len(sc.TestCases)-1].Last = true
	}
	return nil
}

func (c *converter) method(name string, params []Param, steps []parser.Step) (*Method, error) {
	ms := &method{params: make(map[string]Param), primary: "Given"}
	for _, p := range params {
		ms.params[p.Name] = p
	}
	m := &Method{Name: name, Params: params}
	for _, s := range steps {
		step, err := c.step(ms, s)
		if err != nil {
			return nil, err
		}
		m.Steps = append(m.Steps, step)
	}
	return m, nil
}

// normalize tracks the primary keyword; And, But and * inherit it.
func (ms *method) normalize(keyword string) string {
	switch strings.ToLower(keyword) {
	case "given":
		ms.primary = "Given"
	case "when":
		ms.primary = "When"
	case "then":
		ms.primary = "Then"
	}
	return ms.primary
}

func (c *converter) step(ms *method, s parser.Step) (Step, error) {
	keyword := ms.normalize(s.Keyword)
	step := Step{Keyword: s.Keyword, Text: s.Text, Line: s.Line}

	if dt := s.Table(); dt != nil {
		table, err := c.table(ms, dt, s.Line)
		if err != nil {
			return step, err
		}
		step.Table = table
	}

	if res, ok := c.m.Resolve(keyword, s.Text); ok {
		c.bind(ms, &step, res)
	} else {
		c.stub(ms, &step, keyword)
	}
	if len(step.Args) > 0 {
		step.Args[len(step.Args)-1].Last = true
	}
	return step, nil
}

func (c *converter) bind(ms *method, step *Step, res *match.Result) {
	def := res.Def
	class := c.class(def)
	step.Owner = def.Owner
	step.OwnerVar = class.Var
	step.Method = def.Method
	step.ReturnsError = def.ReturnsError

	for i, p := range def.Bindable() {
		var value string
		if i < len(res.Args) {
			value = res.Args[i].Value
		}
		step.Args = append(step.Args, c.argument(ms, p, value))
	}
	c.attachTable(step, def.TakesTable())
}

func (c *converter) attachTable(step *Step, takesTable bool) {
	switch {
	case takesTable && step.Table != nil:
		step.Args = append(step.Args, Arg{Expr: step.Table.ID, Type: "*table.Table"})
	case takesTable:
		step.Args = append(step.Args, Arg{Expr: "nil", Type: "*table.Table"})
	case step.Table != nil:
		step.DiscardTable = true
	}
}

// class registers the owner of def and returns its container entry.
func (c *converter) class(def *catalog.Definition) Class {
	key := def.Namespace + "\x00" + def.Owner
	if i, ok := c.classes[key]; ok {
		return c.file.Classes[i]
	}
	class := Class{Name: def.Owner, Namespace: def.Namespace, Qualified: def.Owner}
	if def.Namespace != "" {
		class.Package = c.imports.use(def.Namespace, def.Package)
		class.Qualified = class.Package + "." + def.Owner
	}
	v := lowerFirst(def.Owner)
	if token.IsKeyword(v) || strings.HasPrefix(v, "scenario") || strings.HasPrefix(v, "background") {
		v = "steps" + def.Owner
	}
	class.Var = c.classVars.unique(v)
	c.classes[key] = len(c.file.Classes)
	c.file.Classes = append(c.file.Classes, class)
	return class
}

// argument renders a captured value for a parameter of the given type.
// Numbers and bools become literals; other non-string types are converted
// at run time.
func (c *converter) argument(ms *method, p catalog.Param, value string) Arg {
	expr, dynamic := ms.expr(value)
	arg := Arg{Value: value, Expr: expr, Type: p.Type}
	if p.Type == "string" {
		return arg
	}
	if !dynamic {
		if lit, ok := basicLiteral(p.Type, value); ok {
			arg.Expr = lit
			return arg
		}
	}
	arg.Convert = true
	c.file.HasConversions = true
	if p.Import != "" {
		arg.Type = c.qualifyType(p.Type, p.Import)
		if qual, ok := strings.CutSuffix(arg.Type, ".Duration"); ok && p.Import == "time" && !strings.ContainsAny(qual, "*[]") {
			c.file.TimePackage = qual
		}
	}
	return arg
}

// qualifyType imports path and rewrites the type's qualifier to the one
// the generated file uses.
func (c *converter) qualifyType(typ, path string) string {
	bare := strings.TrimLeft(typ, "*[]")
	qual, _, ok := strings.Cut(bare, ".")
	if !ok {
		return typ
	}
	got := c.imports.use(path, qual)
	if got == qual {
		return typ
	}
	return strings.Replace(typ, qual+".", got+".", 1)
}

// expr returns a string expression for value. Outline <name> tokens are
// replaced by the scenario's parameters; dynamic reports whether any were.
func (ms *method) expr(value string) (string, bool) {
	if len(ms.params) == 0 {
		return strconv.Quote(value), false
	}
	var parts []string
	dynamic := false
	last := 0
	for _, loc := range outlineToken.FindAllStringSubmatchIndex(value, -1) {
		p, ok := ms.params[value[loc[2]:loc[3]]]
		if !ok {
			continue
		}
		if lit := value[last:loc[0]]; lit != "" {
			parts = append(parts, strconv.Quote(lit))
		}
		parts = append(parts, p.Ident)
		last = loc[1]
		dynamic = true
	}
	if !dynamic {
		return strconv.Quote(value), false
	}
	if lit := value[last:]; lit != "" {
		parts = append(parts, strconv.Quote(lit))
	}
	return strings.Join(parts, " + "), true
}

func basicLiteral(typ, value string) (string, bool) {
	switch typ {
	case "int", "int8", "int16", "int32", "int64":
		if !intLiteral.MatchString(value) {
			return "", false
		}
		n, err := strconv.ParseInt(value, 10, bitSize(typ))
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	case "uint", "uint8", "uint16", "uint32", "uint64", "byte":
		if !intLiteral.MatchString(value) || strings.HasPrefix(value, "-") {
			return "", false
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(value, "+"), 10, bitSize(typ))
		if err != nil {
			return "", false
		}
		return strconv.FormatUint(n, 10), true
	case "float32", "float64":
		if !floatLiteral.MatchString(value) {
			return "", false
		}
		if _, err := strconv.ParseFloat(value, bitSize(typ)); err != nil {
			return "", false
		}
		return value, true
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	}
	return "", false
}

func bitSize(typ string) int {
	switch typ {
	case "int8", "uint8", "byte":
		return 8
	case "int16", "uint16":
		return 16
	case "int32", "uint32", "float32":
		return 32
	}
	return 64
}

func (c *converter) table(ms *method, dt *parser.DataTable, line int) (*Table, error) {
	width := len(dt.HeaderRow)
	for _, row := range dt.Rows {
		if len(row) != width {
			return nil, &TableError{Line: line, Reason: fmt.Sprintf("table row has %d cells, header has %d", len(row), width)}
		}
	}
	ms.tables++
	t := &Table{
		ID:     "table" + strconv.Itoa(ms.tables),
		Header: ms.cells(dt.HeaderRow),
	}
	for _, row := range dt.Rows {
		t.Rows = append(t.Rows, Row{Cells: ms.cells(row)})
	}
	if len(t.Rows) > 0 {
		t.Rows[len(t.Rows)-1].Last = true
	}
	c.imports.use(catalog.TablePackage, "table")
	c.file.HasTables = true
	return t, nil
}

func (ms *method) cells(values []string) []Cell {
	cells := make([]Cell, 0, len(values))
	for _, v := range values {
		expr, _ := ms.expr(v)
		cells = append(cells, Cell{Value: expr, Raw: v})
	}
	if len(cells) > 0 {
		cells[len(cells)-1].Last = true
	}
	return cells
}

// stub points step at a generated method, declaring it on first sight.
func (c *converter) stub(ms *method, step *Step, keyword string) {
	key := stubKey{keyword: keyword, text: step.Text}
	i, seen := c.stubs[key]
	if !seen {
		s := Stub{
			Keyword:      keyword,
			Text:         step.Text,
			Method:       c.stubNames.unique(methodName(step.Text)),
			QuotedPhrase: strconv.Quote(keyword + " " + step.Text),
		}
		params := names{}
		for _, tok := range outlineTokens(step.Text) {
			s.Params = append(s.Params, StubParam{Name: params.unique(localName(tok, "arg")), Type: "string"})
		}
		if step.Table != nil {
			s.Params = append(s.Params, StubParam{Name: params.unique("tbl"), Type: "*table.Table"})
		}
		if len(s.Params) > 0 {
			s.Params[len(s.Params)-1].Last = true
		}
		i = len(c.file.Unimplemented)
		c.stubs[key] = i
		c.file.Unimplemented = append(c.file.Unimplemented, s)
	}

	s := c.file.Unimplemented[i]
	step.Owner = SelfOwner
	step.Method = s.Method
	step.Stub = true
	step.ReturnsError = true

	takesTable := len(s.Params) > 0 && s.Params[len(s.Params)-1].Type == "*table.Table"
	for _, tok := range outlineTokens(step.Text) {
		expr, _ := ms.expr("<" + tok + ">")
		step.Args = append(step.Args, Arg{Value: "<" + tok + ">", Expr: expr, Type: "string"})
	}
	c.attachTable(step, takesTable)
}

// outlineTokens returns the distinct <name> tokens of text in order.
func outlineTokens(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range outlineToken.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func (c *converter) finish() *File {
	f := c.file
	f.Usings = c.imports.imports()
	f.HasUnimplemented = len(f.Unimplemented) > 0
	return f
}

func lines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func hasTag(tags []parser.Tag, name string) bool {
	for _, t := range tags {
		if strings.EqualFold(strings.TrimPrefix(t.Name, "@"), name) {
			return true
		}
	}
	return false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
