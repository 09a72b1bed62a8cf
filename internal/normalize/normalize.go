// Package normalize canonicalizes page text for pattern matching and hashing.
package normalize

import (
	"strings"
	"unicode"
)

// Text collapses every whitespace run to a single space, trims the result
// and lowercases it. Text(Text(s)) == Text(s) for every s.
func Text(s string) string {
	if s == "" {
		return ""
	}
	// strings.Fields splits on unicode.IsSpace, which covers tabs, newlines
	// and non-breaking spaces.
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Join normalizes each part and joins the non-empty results with a space.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := Text(p); n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, " ")
}

// IsBlank reports whether s contains nothing but whitespace.
func IsBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
