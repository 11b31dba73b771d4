package crif

import (
	"go/token"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// pascal joins the letter and digit runs of s, upper-casing the first rune
// of each: "I have 100 dollars" becomes "IHave100Dollars".
func pascal(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(w[size:])
	}
	return b.String()
}

// methodName returns an exported identifier for step text.
func methodName(text string) string {
	name := pascal(text)
	if name == "" {
		return "Step"
	}
	if r, _ := utf8.DecodeRuneInString(name); unicode.IsDigit(r) {
		return "Step" + name
	}
	return name
}

// lowerFirst lower-cases the leading rune.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

// localName returns an unexported identifier for s that is not a keyword.
func localName(s, fallback string) string {
	name := lowerFirst(pascal(s))
	if name == "" {
		name = fallback
	}
	if r, _ := utf8.DecodeRuneInString(name); unicode.IsDigit(r) {
		name = fallback + pascal(s)
	}
	if token.IsKeyword(name) {
		name += "Value"
	}
	return name
}

// names hands out identifiers, suffixing 2, 3, ... on collision.
type names map[string]bool

func (n names) unique(base string) string {
	name := base
	for i := 2; n[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	n[name] = true
	return name
}
