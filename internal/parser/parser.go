package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`@[^@\s]+`)

var stepKeywords = []string{"Given", "When", "Then", "And", "But", "*"}

// Parser turns feature file content into a Document. A failure is returned
// as an error carrying the parser's own message.
type Parser interface {
	Name() string
	ParseDocument(filename string, content []byte) (*Document, error)
}

// New returns the parser registered under name.
func New(name string) (Parser, error) {
	switch name {
	case "", "native":
		return Native{}, nil
	case "cucumber":
		return Cucumber{}, nil
	default:
		return nil, fmt.Errorf("unknown parser %q (use native or cucumber)", name)
	}
}

// Native is the built-in line parser.
type Native struct{}

func (Native) Name() string { return "native" }

func (Native) ParseDocument(filename string, content []byte) (*Document, error) {
	doc, errs := Parse(filename, content)
	if len(errs) > 0 {
		return nil, ParseErrors(errs)
	}
	if doc.Feature == nil {
		return nil, ParseErrors{{Line: 1, Message: "no Feature: found"}}
	}
	return doc, nil
}

// Parse parses a .feature file and returns a Document AST and any parse errors.
func Parse(filename string, content []byte) (*Document, []ParseError) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	p := &lineParser{
		lines: strings.Split(text, "\n"),
		doc:   &Document{},
	}
	p.run()
	return p.doc, p.errors
}

type lineParser struct {
	lines  []string
	i      int
	errors []ParseError

	doc      *Document
	rule     *Rule
	scenario *ScenarioDefinition
	examples *Examples

	steps       *[]Step
	desc        *[]string
	descTarget  *string
	pendingTags []Tag
	argAllowed  bool
}

func (p *lineParser) errorf(line int, format string, args ...any) {
	p.errors = append(p.errors, ParseError{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (p *lineParser) run() {
	for p.i < len(p.lines) {
		line := p.lines[p.i]
		trimmed := strings.TrimSpace(line)
		lineNum := p.i + 1

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			p.i++
			continue
		}

		if isTagLine(trimmed) {
			p.pendingTags = append(p.pendingTags, parseTags(trimmed)...)
			p.closeDescription()
			p.argAllowed = false
			p.i++
			continue
		}

		if p.doc.Feature == nil {
			if name, ok := cutKeyword(trimmed, "Feature:"); ok {
				p.startFeature(name, lineNum)
			} else {
				p.errorf(lineNum, "expected Feature:, got %q", trimmed)
			}
			p.i++
			continue
		}

		switch {
		case isDocStringDelimiter(trimmed):
			p.docString()
			continue
		case strings.HasPrefix(trimmed, "|"):
			p.tableRow(trimmed, lineNum)
		case isKeyword(trimmed):
			p.closeDescription()
			p.argAllowed = false
			p.keyword(trimmed, lineNum)
		default:
			if kw, rest, ok := cutStep(trimmed); ok {
				p.closeDescription()
				p.step(kw, rest, lineNum)
			} else if p.desc != nil {
				*p.desc = append(*p.desc, trimmed)
			} else {
				p.errorf(lineNum, "unexpected text %q", trimmed)
			}
		}
		p.i++
	}
	p.closeDescription()
	p.flushScenario()
}

func (p *lineParser) startFeature(name string, line int) {
	p.doc.Feature = &Feature{
		Header: FeatureHeader{
			Tags: p.pendingTags,
			Name: name,
			Line: line,
		},
	}
	p.pendingTags = nil
	p.openDescription(&p.doc.Feature.Header.Description)
}

func (p *lineParser) keyword(trimmed string, line int) {
	feature := p.doc.Feature
	switch {
	case hasPrefix(trimmed, "Feature:"):
		p.errorf(line, "only one Feature is allowed per file")

	case hasPrefix(trimmed, "Rule:"):
		name, _ := cutKeyword(trimmed, "Rule:")
		p.flushScenario()
		p.steps = nil
		p.rule = &Rule{Tags: p.pendingTags, Name: name, Line: line}
		p.pendingTags = nil
		feature.Children = append(feature.Children, FeatureChild{Rule: p.rule})
		p.openDescription(&p.rule.Description)

	case hasPrefix(trimmed, "Background:"):
		name, _ := cutKeyword(trimmed, "Background:")
		p.flushScenario()
		p.pendingTags = nil // Background doesn't get tags
		bg := &Background{Name: name, Line: line}
		if p.rule != nil {
			if p.rule.Background != nil {
				p.errorf(line, "rule %q already has a Background", p.rule.Name)
			} else if len(p.rule.Scenarios) > 0 {
				p.errorf(line, "Background must precede the scenarios of rule %q", p.rule.Name)
			}
			p.rule.Background = bg
		} else {
			if feature.Background != nil {
				p.errorf(line, "feature already has a Background")
			} else if len(feature.Children) > 0 {
				p.errorf(line, "Background must precede scenarios and rules")
			}
			feature.Background = bg
		}
		p.steps = &bg.Steps
		p.openDescription(&bg.Description)

	case hasPrefix(trimmed, "Scenario Outline:"), hasPrefix(trimmed, "Scenario Template:"):
		name, _ := cutKeyword(trimmed, "Scenario Outline:", "Scenario Template:")
		p.startScenario(name, true, line)

	case hasPrefix(trimmed, "Scenario:"), hasPrefix(trimmed, "Example:"):
		name, _ := cutKeyword(trimmed, "Scenario:", "Example:")
		p.startScenario(name, false, line)

	case hasPrefix(trimmed, "Examples:"), hasPrefix(trimmed, "Scenarios:"):
		name, _ := cutKeyword(trimmed, "Examples:", "Scenarios:")
		if p.scenario == nil {
			p.errorf(line, "Examples outside of a Scenario Outline")
			p.pendingTags = nil
			return
		}
		sc := &p.scenario.Scenario
		sc.Outline = true
		sc.Examples = append(sc.Examples, Examples{Tags: p.pendingTags, Name: name, Line: line})
		p.pendingTags = nil
		p.examples = &sc.Examples[len(sc.Examples)-1]
		p.steps = nil
		p.openDescription(nil)
	}
}

func (p *lineParser) startScenario(name string, outline bool, line int) {
	p.flushScenario()
	p.scenario = &ScenarioDefinition{
		Tags:     p.pendingTags,
		Scenario: Scenario{Name: name, Outline: outline},
		Line:     line,
	}
	p.pendingTags = nil
	p.steps = &p.scenario.Scenario.Steps
	p.openDescription(&p.scenario.Scenario.Description)
}

func (p *lineParser) flushScenario() {
	if p.scenario == nil {
		return
	}
	if p.rule != nil {
		p.rule.Scenarios = append(p.rule.Scenarios, *p.scenario)
	} else {
		p.doc.Feature.Children = append(p.doc.Feature.Children, FeatureChild{Scenario: p.scenario})
	}
	p.scenario = nil
	p.examples = nil
	p.steps = nil
}

func (p *lineParser) step(keyword, text string, line int) {
	switch {
	case p.examples != nil:
		p.errorf(line, "step %q after Examples", keyword+" "+text)
		p.argAllowed = false
		return
	case p.steps == nil:
		p.errorf(line, "step %q outside of a Scenario or Background", keyword+" "+text)
		p.argAllowed = false
		return
	}
	*p.steps = append(*p.steps, Step{Keyword: keyword, Text: text, Line: line})
	p.argAllowed = true
}

func (p *lineParser) lastStep() *Step {
	if p.steps == nil || len(*p.steps) == 0 {
		return nil
	}
	return &(*p.steps)[len(*p.steps)-1]
}

func (p *lineParser) tableRow(trimmed string, line int) {
	cells, err := splitCells(trimmed)
	if err != nil {
		p.errorf(line, "%v", err)
		return
	}
	p.closeDescription()

	if p.examples != nil {
		if p.examples.HeaderRow == nil {
			p.examples.HeaderRow = cells
		} else {
			p.examples.Rows = append(p.examples.Rows, cells)
		}
		return
	}

	step := p.lastStep()
	if step == nil || !p.argAllowed {
		p.errorf(line, "table row without a preceding step")
		return
	}
	if step.Argument == nil {
		step.Argument = &StepArgument{}
	}
	if step.Argument.DocString != nil {
		p.errorf(line, "step already has a doc string argument")
		return
	}
	if step.Argument.DataTable == nil {
		step.Argument.DataTable = &DataTable{HeaderRow: cells}
		return
	}
	step.Argument.DataTable.Rows = append(step.Argument.DataTable.Rows, cells)
}

// docString consumes a doc string block. p.i points at the opening delimiter.
func (p *lineParser) docString() {
	openLine := p.i + 1
	raw := p.lines[p.i]
	opener := strings.TrimSpace(raw)
	indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
	delimiter := `"""`
	if strings.HasPrefix(opener, "```") {
		delimiter = "```"
	}
	mediaType := strings.TrimSpace(strings.TrimPrefix(opener, delimiter))

	var content []string
	p.i++ // move past opening delimiter
	closed := false
	for p.i < len(p.lines) {
		if strings.TrimSpace(p.lines[p.i]) == delimiter {
			closed = true
			p.i++
			break
		}
		content = append(content, stripIndent(p.lines[p.i], indent))
		p.i++
	}
	if !closed {
		p.errorf(openLine, "unterminated doc string")
		return
	}

	step := p.lastStep()
	if step == nil || !p.argAllowed {
		p.errorf(openLine, "doc string without a preceding step")
		return
	}
	if step.Argument != nil {
		p.errorf(openLine, "step already has an argument")
		return
	}
	step.Argument = &StepArgument{DocString: &DocString{
		MediaType: mediaType,
		Content:   strings.Join(content, "\n"),
	}}
	p.argAllowed = false
}

func (p *lineParser) openDescription(target *string) {
	p.desc = &[]string{}
	p.descTarget = target
}

func (p *lineParser) closeDescription() {
	if p.desc != nil && p.descTarget != nil && len(*p.desc) > 0 {
		*p.descTarget = strings.Join(*p.desc, "\n")
	}
	p.desc = nil
	p.descTarget = nil
}

func parseTags(line string) []Tag {
	if idx := strings.Index(line, " #"); idx >= 0 {
		line = line[:idx]
	}
	matches := tagPattern.FindAllString(line, -1)
	var tags []Tag
	for _, m := range matches {
		tags = append(tags, Tag{Name: m})
	}
	return tags
}

// splitCells splits a "| a | b |" row, honouring \|, \\ and \n escapes.
func splitCells(trimmed string) ([]string, error) {
	if !strings.HasSuffix(trimmed, "|") || len(trimmed) < 2 {
		return nil, fmt.Errorf("table row must start and end with |")
	}
	body := trimmed[1:]
	var cells []string
	var cell strings.Builder
	escaped, closed := false, false
	for _, r := range body {
		closed = false
		if escaped {
			switch r {
			case 'n':
				cell.WriteRune('\n')
			case '|', '\\':
				cell.WriteRune(r)
			default:
				cell.WriteRune('\\')
				cell.WriteRune(r)
			}
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '|':
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
			closed = true
		default:
			cell.WriteRune(r)
		}
	}
	if !closed {
		return nil, fmt.Errorf("table row must end with an unescaped |")
	}
	return cells, nil
}

func stripIndent(line string, indent int) string {
	i := 0
	for i < indent && i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[i:]
}

func isTagLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "@")
}

func isKeyword(trimmed string) bool {
	for _, kw := range []string{
		"Feature:", "Rule:", "Background:",
		"Scenario:", "Example:", "Scenario Outline:", "Scenario Template:",
		"Examples:", "Scenarios:",
	} {
		if hasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}

func isDocStringDelimiter(trimmed string) bool {
	return strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "```")
}

func hasPrefix(trimmed, keyword string) bool {
	return strings.HasPrefix(trimmed, keyword)
}

// cutKeyword strips the first matching keyword and returns the trimmed name.
func cutKeyword(trimmed string, keywords ...string) (string, bool) {
	for _, kw := range keywords {
		if rest, ok := strings.CutPrefix(trimmed, kw); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// cutStep splits a step line into its keyword and text.
func cutStep(trimmed string) (keyword, text string, ok bool) {
	for _, kw := range stepKeywords {
		rest, found := strings.CutPrefix(trimmed, kw)
		if !found {
			continue
		}
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			continue
		}
		return kw, strings.TrimSpace(rest), true
	}
	return "", "", false
}
