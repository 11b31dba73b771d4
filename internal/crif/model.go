// Package crif builds the code-ready intermediate form of a feature file:
// a template-ready tree with every step resolved to an owner and method,
// aggregated imports and owner types, and a ledger of unimplemented steps.
package crif

import "fmt"

// SelfOwner is the owner of steps that resolve to a generated stub on the
// feature type itself.
const SelfOwner = "self"

// File is the CRIF of one feature file. It is built fresh per file and is
// not modified once handed to a renderer.
type File struct {
	SourceFile string
	Package    string
	Namespace  string

	Feature      Feature
	BaseClass    string
	HasBaseClass bool
	Usings       []Import
	Classes      []Class

	Background    *Method
	Rules         []Rule
	Unimplemented []Stub

	// Methods lists every step-bearing method in emission order:
	// background, rule backgrounds, then scenarios. Snapshots serialize it
	// alongside the tree, so a decoded File renders the same output.
	Methods []*Method

	HasUnimplemented bool
	HasExplicit      bool
	HasOutline       bool
	HasTables        bool
	HasConversions   bool

	// TimePackage is the qualifier of package time when a step argument
	// converts to time.Duration.
	TimePackage string
}

type Feature struct {
	Name        string
	Ident       string
	Description []string
	Tags        []string
}

// Import is one import of the generated file. Alias is set when the
// package is imported under a name other than its default, or "_" when
// only requested by a @using tag.
type Import struct {
	Path  string
	Name  string
	Alias string
	Spec  string
}

// Class is an owner type instantiated by the generated test container.
type Class struct {
	Name      string
	Package   string
	Namespace string
	Qualified string
	Var       string
}

type Rule struct {
	Name        string
	HasName     bool
	Ident       string
	Description []string
	Background  *Method
	Scenarios   []Scenario
}

type Scenario struct {
	Name         string
	Ident        string
	Method       string
	Tags         []string
	ExplicitTag  bool
	Remarks      []string
	HasRemarks   bool
	IsOutline    bool
	Params       []Param
	TestCases    []TestCase
	Steps        []Step
	RuleSetup    string
	HasRuleSetup bool
}

// Method is a generated function holding a sequence of step calls.
type Method struct {
	Name   string
	Params []Param
	Steps  []Step
}

// Param is a Scenario Outline parameter, always string typed.
type Param struct {
	Name  string
	Ident string
	Type  string
	Last  bool
}

type TestCase struct {
	Name   string
	Values []Value
	Last   bool
}

type Value struct {
	Raw    string
	Quoted string
	Last   bool
}

type Step struct {
	Keyword      string
	Text         string
	Owner        string
	OwnerVar     string
	Method       string
	Args         []Arg
	Table        *Table
	DiscardTable bool
	ReturnsError bool
	Stub         bool
	Line         int
}

// Arg is one call argument. Expr is a source expression; when Convert is
// set the expression is a string to be converted to Type at run time.
type Arg struct {
	Value   string
	Expr    string
	Type    string
	Convert bool
	Last    bool
}

// Table is a data table literal scoped to one method.
type Table struct {
	ID     string
	Header []Cell
	Rows   []Row
}

type Cell struct {
	Value string
	Raw   string
	Last  bool
}

type Row struct {
	Cells []Cell
	Last  bool
}

// Stub is one unimplemented step, declared once per file.
type Stub struct {
	Keyword      string
	Text         string
	Method       string
	Params       []StubParam
	QuotedPhrase string
}

type StubParam struct {
	Name string
	Type string
	Last bool
}

// StepCount returns the number of step calls in the file and how many of
// them resolve to stubs.
func (f *File) StepCount() (total, stubbed int) {
	for _, m := range f.Methods {
		for _, s := range m.Steps {
			total++
			if s.Stub {
				stubbed++
			}
		}
	}
	return total, stubbed
}

// TagError reports a malformed feature tag.
type TagError struct {
	Tag    string
	Reason string
}

func (e *TagError) Error() string {
	return fmt.Sprintf("invalid tag %s: %s", e.Tag, e.Reason)
}

// TableError reports a data table or Examples block with a bad shape.
type TableError struct {
	Line   int
	Reason string
}

func (e *TableError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}
