package parser

import (
	"bytes"
	"strings"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"
)

// Cucumber parses with the official cucumber/gherkin grammar and transforms
// the resulting message tree into a Document.
type Cucumber struct{}

func (Cucumber) Name() string { return "cucumber" }

func (Cucumber) ParseDocument(filename string, content []byte) (*Document, error) {
	gd, err := gherkin.ParseGherkinDocument(bytes.NewReader(content), (&messages.Incrementing{}).NewId)
	if err != nil {
		return nil, err
	}
	doc := Transform(gd)
	if doc.Feature == nil {
		return nil, ParseErrors{{Line: 1, Message: "no Feature: found"}}
	}
	return doc, nil
}

// Transform converts a cucumber GherkinDocument into a Layer 1 Document.
func Transform(gd *messages.GherkinDocument) *Document {
	doc := &Document{}
	if gd == nil || gd.Feature == nil {
		return doc
	}

	f := gd.Feature
	feature := &Feature{
		Header: FeatureHeader{
			Tags:        transformTags(f.Tags),
			Name:        f.Name,
			Description: trimDescription(f.Description),
			Line:        line(f.Location),
		},
	}

	for _, child := range f.Children {
		switch {
		case child.Background != nil:
			feature.Background = transformBackground(child.Background)
		case child.Scenario != nil:
			sd := transformScenario(child.Scenario)
			feature.Children = append(feature.Children, FeatureChild{Scenario: &sd})
		case child.Rule != nil:
			feature.Children = append(feature.Children, FeatureChild{Rule: transformRule(child.Rule)})
		}
	}

	doc.Feature = feature
	return doc
}

func transformRule(r *messages.Rule) *Rule {
	rule := &Rule{
		Tags:        transformTags(r.Tags),
		Name:        r.Name,
		Description: trimDescription(r.Description),
		Line:        line(r.Location),
	}
	for _, child := range r.Children {
		switch {
		case child.Background != nil:
			rule.Background = transformBackground(child.Background)
		case child.Scenario != nil:
			rule.Scenarios = append(rule.Scenarios, transformScenario(child.Scenario))
		}
	}
	return rule
}

func transformBackground(b *messages.Background) *Background {
	return &Background{
		Name:        b.Name,
		Description: trimDescription(b.Description),
		Steps:       transformSteps(b.Steps),
		Line:        line(b.Location),
	}
}

func transformScenario(s *messages.Scenario) ScenarioDefinition {
	keyword := strings.TrimSpace(s.Keyword)
	sc := Scenario{
		Name:        s.Name,
		Description: trimDescription(s.Description),
		Outline:     len(s.Examples) > 0 || strings.Contains(keyword, "Outline") || strings.Contains(keyword, "Template"),
		Steps:       transformSteps(s.Steps),
	}
	for _, ex := range s.Examples {
		examples := Examples{
			Tags: transformTags(ex.Tags),
			Name: ex.Name,
			Line: line(ex.Location),
		}
		if ex.TableHeader != nil {
			examples.HeaderRow = cellValues(ex.TableHeader)
		}
		for _, row := range ex.TableBody {
			examples.Rows = append(examples.Rows, cellValues(row))
		}
		sc.Examples = append(sc.Examples, examples)
	}
	return ScenarioDefinition{
		Tags:     transformTags(s.Tags),
		Scenario: sc,
		Line:     line(s.Location),
	}
}

func transformSteps(steps []*messages.Step) []Step {
	var out []Step
	for _, s := range steps {
		step := Step{
			Keyword: strings.TrimSpace(s.Keyword),
			Text:    s.Text,
			Line:    line(s.Location),
		}
		switch {
		case s.DataTable != nil && len(s.DataTable.Rows) > 0:
			dt := &DataTable{HeaderRow: cellValues(s.DataTable.Rows[0])}
			for _, row := range s.DataTable.Rows[1:] {
				dt.Rows = append(dt.Rows, cellValues(row))
			}
			step.Argument = &StepArgument{DataTable: dt}
		case s.DocString != nil:
			step.Argument = &StepArgument{DocString: &DocString{
				MediaType: s.DocString.MediaType,
				Content:   s.DocString.Content,
			}}
		}
		out = append(out, step)
	}
	return out
}

func transformTags(tags []*messages.Tag) []Tag {
	var out []Tag
	for _, t := range tags {
		out = append(out, Tag{Name: t.Name})
	}
	return out
}

func cellValues(row *messages.TableRow) []string {
	values := make([]string, 0, len(row.Cells))
	for _, c := range row.Cells {
		values = append(values, c.Value)
	}
	return values
}

// trimDescription drops the indentation cucumber keeps on description lines.
func trimDescription(desc string) string {
	var lines []string
	for _, l := range strings.Split(desc, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

func line(loc *messages.Location) int {
	if loc == nil {
		return 0
	}
	return int(loc.Line)
}
