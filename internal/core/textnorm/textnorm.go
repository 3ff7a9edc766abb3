// Package textnorm collapses irregular whitespace in user-generated text
// before it is embedded into a model prompt.
package textnorm

import (
	"regexp"
	"strings"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Applied in order; later rules assume the earlier ones already ran.
var rules = []rule{
	{regexp.MustCompile(`\n{4,}`), "\n\n"},
	{regexp.MustCompile(`\n{2,}`), "\n"},
	{regexp.MustCompile(`[ ]{3,}`), "  "},
	{regexp.MustCompile(`\t+`), " "},
	{regexp.MustCompile(`[^\S\r\n]{2,}`), " "},
	{regexp.MustCompile(`\s+\n`), "\n"},
	{regexp.MustCompile(`\n\s+`), "\n"},
}

// Normalize trims s and collapses runs of newlines, spaces and tabs.
// The result is stable: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}

	return s
}

// NormalizePtr normalizes a nullable field, keeping nil as nil.
func NormalizePtr(s *string) *string {
	if s == nil {
		return nil
	}

	n := Normalize(*s)

	return &n
}
