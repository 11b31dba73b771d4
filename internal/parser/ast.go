package parser

import (
	"fmt"
	"strings"
)

// Layer 1: Gherkin document tree shared by every parser implementation

type Document struct {
	Feature *Feature
}

type Feature struct {
	Header     FeatureHeader
	Background *Background
	Children   []FeatureChild
}

type FeatureHeader struct {
	Tags        []Tag
	Name        string
	Description string
	Line        int
}

// FeatureChild holds exactly one of Rule or Scenario, in document order.
type FeatureChild struct {
	Rule     *Rule
	Scenario *ScenarioDefinition
}

type Rule struct {
	Tags        []Tag
	Name        string
	Description string
	Background  *Background
	Scenarios   []ScenarioDefinition
	Line        int
}

type Background struct {
	Name        string
	Description string
	Steps       []Step
	Line        int
}

type ScenarioDefinition struct {
	Tags     []Tag
	Scenario Scenario
	Line     int // 1-based line number of Scenario: line
}

type Scenario struct {
	Name        string
	Description string
	Outline     bool
	Steps       []Step
	Examples    []Examples
}

type Examples struct {
	Tags      []Tag
	Name      string
	HeaderRow []string
	Rows      [][]string
	Line      int
}

type Tag struct {
	Name string // e.g. "@explicit", "@namespace:billing"
}

type Step struct {
	Keyword  string // Given, When, Then, And, But, *
	Text     string
	Argument *StepArgument
	Line     int
}

type StepArgument struct {
	DocString *DocString
	DataTable *DataTable
}

type DocString struct {
	MediaType string
	Content   string
}

type DataTable struct {
	HeaderRow []string
	Rows      [][]string
}

// Table returns the step's data table, or nil.
func (s Step) Table() *DataTable {
	if s.Argument == nil {
		return nil
	}
	return s.Argument.DataTable
}

type ParseError struct {
	Line    int
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseErrors collects every syntax problem found in one file.
type ParseErrors []ParseError

func (e ParseErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d parse errors:", len(e))
	for _, pe := range e {
		b.WriteString("\n  ")
		b.WriteString(pe.Error())
	}
	return b.String()
}
