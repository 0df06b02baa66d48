package parser

import (
	"regexp"
	"strings"
	"unicode"
)

var bracketPattern = regexp.MustCompile(`\[(.*?)\]`)

// NormalizeOptions controls the normalization pass.
type NormalizeOptions struct {
	XSEAcronym string
	// Simplify drops every line containing one of Exclude.
	Simplify bool
	Exclude  []string
}

// Normalize returns a copy of lines with plugin indexes padded so old and
// new crash generator formats look alike. Applying it twice gives the same
// result as applying it once.
func Normalize(lines []string, opts NormalizeOptions) []string {
	out := make([]string, 0, len(lines))

	pluginsAt := -1
	for i, line := range lines {
		if strings.Contains(line, "PLUGINS:") && (opts.XSEAcronym == "" || !strings.Contains(line, opts.XSEAcronym)) {
			pluginsAt = i
			break
		}
	}

	for i, line := range lines {
		if pluginsAt >= 0 && i > pluginsAt {
			line = padBrackets(line)
		}
		if opts.Simplify && containsAny(line, opts.Exclude) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// padBrackets replaces whitespace inside [...] with '0': "[ 1]" -> "[01]".
func padBrackets(line string) string {
	if !strings.Contains(line, "[") {
		return line
	}
	return bracketPattern.ReplaceAllStringFunc(line, func(m string) string {
		inner := m[1 : len(m)-1]
		return "[" + strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return '0'
			}
			return r
		}, inner) + "]"
	})
}

func containsAny(line string, subs []string) bool {
	for _, s := range subs {
		if s != "" && strings.Contains(line, s) {
			return true
		}
	}
	return false
}
