// Package phrase compiles configured purchase/denial phrases into
// case-insensitive patterns that tolerate flexible whitespace and hyphenation.
// Plain phrases match anywhere in the text, including inside longer words;
// use a "re:" pattern for word boundaries.
package phrase

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"stockwatch/internal/normalize"
)

// RawPrefix marks a pattern that is used as a regular expression verbatim.
const RawPrefix = "re:"

// ErrEmptyPattern is returned when a phrase set contains a blank entry.
var ErrEmptyPattern = errors.New("empty phrase pattern")

// separator matches whatever may sit between two words of a phrase:
// nothing ("preorder"), whitespace ("pre order") or hyphens ("pre-order").
const separator = `[\s\-]*`

type entry struct {
	source string
	re     *regexp.Regexp
}

// Set is an ordered, compiled phrase set. It is immutable after Compile and
// safe for concurrent use.
type Set struct {
	entries []entry
}

// Compile builds a Set from patterns, preserving their order.
func Compile(patterns []string) (*Set, error) {
	s := &Set{entries: make([]entry, 0, len(patterns))}
	for i, p := range patterns {
		re, err := compileOne(p)
		if err != nil {
			return nil, fmt.Errorf("phrase %d (%q): %w", i, p, err)
		}
		s.entries = append(s.entries, entry{source: p, re: re})
	}
	return s, nil
}

func compileOne(p string) (*regexp.Regexp, error) {
	if raw, ok := strings.CutPrefix(p, RawPrefix); ok {
		if strings.TrimSpace(raw) == "" {
			return nil, ErrEmptyPattern
		}
		return regexp.Compile("(?i)" + raw)
	}

	words := splitWords(p)
	if len(words) == 0 {
		return nil, ErrEmptyPattern
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(w))
	}
	return regexp.Compile("(?i)" + strings.Join(quoted, separator))
}

// splitWords breaks a phrase on whitespace and hyphens.
func splitWords(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-'
	})
}

// MatchesAny reports whether text contains at least one phrase of the set.
func (s *Set) MatchesAny(text string) bool {
	_, ok := s.FirstMatch(text)
	return ok
}

// FirstMatch returns the source pattern of the first phrase, in declaration
// order, that occurs in text. Evaluation stops at the first hit.
func (s *Set) FirstMatch(text string) (string, bool) {
	if s == nil {
		return "", false
	}
	t := normalize.Text(text)
	if t == "" {
		return "", false
	}
	for _, e := range s.entries {
		if e.re.MatchString(t) {
			return e.source, true
		}
	}
	return "", false
}

// Len returns the number of phrases in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Patterns returns the configured source patterns in order.
func (s *Set) Patterns() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.source
	}
	return out
}
