// Package match resolves literal step text against the step catalog.
package match

import (
	"regexp"
	"strings"

	"github.com/chriserin/ftgen/internal/catalog"
)

// capture accepts a double-quoted phrase or a single non-whitespace token.
const capture = `(?:"([^"]*)"|(\S+))`

// Arg is one positional argument extracted from step text.
type Arg struct {
	Value  string
	Quoted bool
	Last   bool
}

// Result associates a step with the definition it matched.
type Result struct {
	Def  *catalog.Definition
	Args []Arg
}

type candidate struct {
	def *catalog.Definition
	re  *regexp.Regexp
}

// Matcher is built once per catalog and is safe for concurrent use.
type Matcher struct {
	exact     map[string][]candidate
	templated map[string][]candidate
	compiled  map[*catalog.Definition]*regexp.Regexp
}

// New precompiles the catalog's patterns grouped by keyword, keeping
// registration order.
func New(cat *catalog.Catalog) *Matcher {
	m := &Matcher{
		exact:     make(map[string][]candidate),
		templated: make(map[string][]candidate),
		compiled:  make(map[*catalog.Definition]*regexp.Regexp),
	}
	defs := cat.Definitions()
	for i := range defs {
		def := &defs[i]
		kw := strings.ToLower(def.Keyword)
		if len(def.Placeholders()) == 0 {
			m.exact[kw] = append(m.exact[kw], candidate{def: def})
			continue
		}
		re := Compile(def.Pattern)
		m.compiled[def] = re
		m.templated[kw] = append(m.templated[kw], candidate{def: def, re: re})
	}
	return m
}

// Compile builds the anchored, case-insensitive matcher for a templated
// pattern.
func Compile(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?i)^`)
	last := 0
	for _, loc := range catalog.PlaceholderPattern.FindAllStringIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		b.WriteString(capture)
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}

// Match returns the first definition registered under keyword that
// accepts text. Exact patterns are tried before templated ones.
func (m *Matcher) Match(keyword, text string) (*catalog.Definition, bool) {
	kw := strings.ToLower(keyword)
	for _, c := range m.exact[kw] {
		if strings.EqualFold(c.def.Pattern, text) {
			return c.def, true
		}
	}
	for _, c := range m.templated[kw] {
		if c.re.MatchString(text) {
			return c.def, true
		}
	}
	return nil, false
}

// ExtractArguments pulls the positional placeholder values of def out of
// text. Quoted phrases are unquoted.
func (m *Matcher) ExtractArguments(def *catalog.Definition, text string) []Arg {
	re, ok := m.compiled[def]
	if !ok {
		if len(def.Placeholders()) == 0 {
			return nil
		}
		re = Compile(def.Pattern)
	}
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil
	}

	n := (len(loc)/2 - 1) / 2
	args := make([]Arg, 0, n)
	for i := 0; i < n; i++ {
		quoted, bare := 2*(1+2*i), 2*(2+2*i)
		switch {
		case loc[quoted] >= 0:
			args = append(args, Arg{Value: text[loc[quoted]:loc[quoted+1]], Quoted: true})
		case loc[bare] >= 0:
			args = append(args, Arg{Value: text[loc[bare]:loc[bare+1]]})
		}
	}
	if len(args) > 0 {
		args[len(args)-1].Last = true
	}
	return args
}

// Resolve matches text and extracts its arguments in one call.
func (m *Matcher) Resolve(keyword, text string) (*Result, bool) {
	def, ok := m.Match(keyword, text)
	if !ok {
		return nil, false
	}
	return &Result{Def: def, Args: m.ExtractArguments(def, text)}, true
}

// Ambiguities returns every definition that accepts text, winner first.
// It does not change which definition Match returns.
func (m *Matcher) Ambiguities(keyword, text string) []*catalog.Definition {
	kw := strings.ToLower(keyword)
	var out []*catalog.Definition
	for _, c := range m.exact[kw] {
		if strings.EqualFold(c.def.Pattern, text) {
			out = append(out, c.def)
		}
	}
	for _, c := range m.templated[kw] {
		if c.re.MatchString(text) {
			out = append(out, c.def)
		}
	}
	return out
}

// Sample returns text that a pattern's placeholders would accept, used to
// probe for overlapping patterns.
func Sample(pattern string) string {
	return catalog.PlaceholderPattern.ReplaceAllString(pattern, "x")
}

// Conflict is a definition that never wins on its own sample text because
// an earlier one accepts it first.
type Conflict struct {
	Def    *catalog.Definition
	Winner *catalog.Definition
	Text   string
}

// Conflicts probes every definition of cat with its Sample text. cat must
// be the catalog m was built from.
func (m *Matcher) Conflicts(cat *catalog.Catalog) []Conflict {
	var out []Conflict
	defs := cat.Definitions()
	for i := range defs {
		def := &defs[i]
		text := Sample(def.Pattern)
		winners := m.Ambiguities(def.Keyword, text)
		if len(winners) > 0 && winners[0] != def {
			out = append(out, Conflict{Def: def, Winner: winners[0], Text: text})
		}
	}
	return out
}
