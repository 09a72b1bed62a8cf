package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// CandidateSelector matches anchors and button equivalents.
const CandidateSelector = `a, button, input[type="submit"], input[type="button"], [role="button"]`

// skippedTags never contribute rendered text.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Document is a parsed page. It is only valid for one detection pass.
type Document struct {
	doc *goquery.Document
}

// Parse reads markup from r. The HTML5 parser recovers from malformed
// markup, so errors only come from reading r.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// Text returns the rendered text of the whole page.
func (d *Document) Text() string {
	if d == nil || d.doc == nil {
		return ""
	}
	return renderedText(d.doc.Selection.Nodes...)
}

// Title returns the trimmed <title> text, if any.
func (d *Document) Title() string {
	if d == nil || d.doc == nil {
		return ""
	}
	return strings.TrimSpace(d.doc.Find("head title").First().Text())
}

// Candidates returns every interactive element in document order.
func (d *Document) Candidates() []Node {
	if d == nil || d.doc == nil {
		return nil
	}
	sel := d.doc.Find(CandidateSelector)
	nodes := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, &Element{sel: s})
	})
	return nodes
}

// Element adapts a single goquery selection to Node.
type Element struct {
	sel *goquery.Selection
}

// Tag returns the element's lower-case tag name.
func (e *Element) Tag() string {
	return goquery.NodeName(e.sel)
}

// Text returns the element's rendered text. Input buttons render their
// value attribute.
func (e *Element) Text() string {
	if e.Tag() == "input" {
		v, _ := e.sel.Attr("value")
		return v
	}
	return renderedText(e.sel.Nodes...)
}

// Attr returns the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// Parent returns the enclosing element, or nil at the document root.
func (e *Element) Parent() Node {
	p := e.sel.Parent()
	if p.Length() == 0 {
		return nil
	}
	return &Element{sel: p}
}

// renderedText joins the trimmed text nodes below roots with single spaces,
// so adjacent inline elements do not run together.
func renderedText(roots ...*html.Node) string {
	var parts []string
	for _, n := range roots {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	case html.ElementNode:
		if skippedTags[n.Data] {
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
