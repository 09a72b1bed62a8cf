// Package dom exposes the parts of a parsed product page the detector looks
// at: interactive candidate nodes, their accessibility attributes and a
// bounded window of ancestor text.
package dom

import (
	"strings"

	"stockwatch/internal/normalize"
)

// MaxAncestorDepth caps how many ancestors LocalContext climbs.
const MaxAncestorDepth = 4

// AccessibilityAttrs are the attributes whose values count as part of a
// node's own text, in the order they are appended.
var AccessibilityAttrs = []string{"aria-label", "title"}

// Node is an interactive page element considered as buy-signal evidence.
// Parent returns nil once the document root is reached.
type Node interface {
	Text() string
	Attr(name string) (string, bool)
	Parent() Node
}

// AttrText returns the normalized values of the node's recognised
// accessibility attributes. Absent or blank attributes are skipped.
func AttrText(n Node) string {
	if n == nil {
		return ""
	}
	values := make([]string, 0, len(AccessibilityAttrs))
	for _, key := range AccessibilityAttrs {
		if v, ok := n.Attr(key); ok {
			values = append(values, v)
		}
	}
	return normalize.Join(values...)
}

// OwnText returns the node's rendered text joined with its accessibility
// attribute values, normalized.
func OwnText(n Node) string {
	if n == nil {
		return ""
	}
	return normalize.Join(n.Text(), AttrText(n))
}

// LocalContext returns OwnText(n) followed by the text of up to
// MaxAncestorDepth ancestors. A missing ancestor ends the climb early and
// yields a shorter window.
func LocalContext(n Node) string {
	if n == nil {
		return ""
	}
	chunks := make([]string, 0, MaxAncestorDepth+1)
	chunks = append(chunks, OwnText(n))

	parent := n.Parent()
	for depth := 0; depth < MaxAncestorDepth && parent != nil; depth++ {
		chunks = append(chunks, parent.Text())
		parent = parent.Parent()
	}
	return normalize.Join(chunks...)
}

// Snippet shortens s to at most max runes for log and alert output.
func Snippet(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return strings.TrimSpace(string(r[:max-3])) + "..."
}
