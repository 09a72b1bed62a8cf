// Package detect decides from page text alone whether a product page
// currently signals that the product can be bought.
package detect

import (
	"fmt"
	"strings"

	"stockwatch/internal/core"
	"stockwatch/internal/dom"
	"stockwatch/internal/normalize"
	"stockwatch/internal/phrase"
)

// Broad strategy pools, in evaluation order.
const (
	PoolPage       = "page_text"
	PoolNodeText   = "node_text"
	PoolAttributes = "node_attributes"
	// PoolNode marks strict evidence anchored to one candidate node.
	PoolNode = "node"
)

// contextSnippetLen bounds the context stored in Evidence.
const contextSnippetLen = 240

// Page is the parsed view of a fetched page the classifier needs.
// *dom.Document implements it.
type Page interface {
	Text() string
	Candidates() []dom.Node
}

// Decision explains what the strict strategy made of one candidate.
type Decision string

const (
	DecisionVetoed     Decision = "vetoed"      // a negative phrase matched
	DecisionNoPositive Decision = "no_positive" // no strict positive phrase
	DecisionOffTopic   Decision = "off_topic"   // context failed the topical gate
	DecisionAccepted   Decision = "accepted"
)

// CandidateReport is one line of Explain output.
type CandidateReport struct {
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Decision Decision `json:"decision"`
	Phrase   string   `json:"phrase,omitempty"`
}

// Classifier classifies pages of a single target. It is immutable after New
// and safe for concurrent use.
type Classifier struct {
	target         core.Target
	strictPositive *phrase.Set
	widePositive   *phrase.Set
	negative       *phrase.Set
	topic          topicGate
}

// New compiles the phrase sets of target. Empty phrase sets are replaced by
// the package defaults; the strict strategy additionally requires topical
// terms.
func New(target core.Target) (*Classifier, error) {
	target = ApplyDefaults(target)
	if !target.Strategy.Valid() {
		return nil, fmt.Errorf("target %q: unknown strategy %q (supported: strict, broad)", target.Name, target.Strategy)
	}

	c := &Classifier{target: target}
	var err error
	if c.strictPositive, err = phrase.Compile(target.Phrases.StrictPositive); err != nil {
		return nil, fmt.Errorf("target %q: strict positive phrases: %w", target.Name, err)
	}
	if c.widePositive, err = phrase.Compile(target.Phrases.WidePositive); err != nil {
		return nil, fmt.Errorf("target %q: wide positive phrases: %w", target.Name, err)
	}
	if c.negative, err = phrase.Compile(target.Phrases.Negative); err != nil {
		return nil, fmt.Errorf("target %q: negative phrases: %w", target.Name, err)
	}

	c.topic = newTopicGate(target.Topic)
	if target.Strategy == core.StrategyStrict && len(c.topic.required) == 0 {
		return nil, fmt.Errorf("target %q: strict strategy requires at least one topic.required term", target.Name)
	}
	return c, nil
}

// Target returns the effective target configuration, defaults applied.
func (c *Classifier) Target() core.Target {
	return c.target
}

// Classify runs the target's strategy over page. It never fails: anomalies
// in the markup only shorten the text the strategy sees.
func (c *Classifier) Classify(page Page, url string) core.Verdict {
	v := core.Verdict{
		Target:   c.target.Name,
		URL:      url,
		Strategy: c.target.Strategy,
	}
	if page == nil {
		return v
	}

	switch c.target.Strategy {
	case core.StrategyBroad:
		v.Evidence = c.broad(page)
	default:
		v.Evidence = c.strict(page)
	}
	v.Purchasable = v.Evidence != nil
	return v
}

// strict anchors evidence to one candidate node: negative veto, then a
// narrow positive phrase, then the topical gate over the node's context
// window. The first qualifying node wins.
func (c *Classifier) strict(page Page) *core.Evidence {
	for _, n := range page.Candidates() {
		own := dom.OwnText(n)
		decision, matched := c.judge(own)
		if decision != "" {
			continue
		}
		ctx := dom.LocalContext(n)
		if !c.topic.pass(ctx) {
			continue
		}
		return &core.Evidence{
			Pool:     PoolNode,
			Phrase:   matched,
			NodeText: own,
			Context:  dom.Snippet(ctx, contextSnippetLen),
		}
	}
	return nil
}

// judge applies the phrase checks to a node's own text. An empty decision
// means the node needs the topical gate next.
func (c *Classifier) judge(own string) (Decision, string) {
	if neg, ok := c.negative.FirstMatch(own); ok {
		return DecisionVetoed, neg
	}
	pos, ok := c.strictPositive.FirstMatch(own)
	if !ok {
		return DecisionNoPositive, ""
	}
	return "", pos
}

// broad tests the whole-page text, the joined candidate texts and the joined
// candidate attribute values against the wide positive set. There is no
// negative veto and no topical gate: a page that says "Sold out, notify me
// when you can purchase" is positive. Use it only where a missed restock is
// costlier than a noisy alert.
func (c *Classifier) broad(page Page) *core.Evidence {
	candidates := page.Candidates()
	texts := make([]string, 0, len(candidates))
	attrs := make([]string, 0, len(candidates))
	for _, n := range candidates {
		texts = append(texts, n.Text())
		attrs = append(attrs, dom.AttrText(n))
	}

	pools := []struct {
		name string
		text func() string
	}{
		{PoolPage, page.Text},
		{PoolNodeText, func() string { return strings.Join(texts, " ") }},
		{PoolAttributes, func() string { return strings.Join(attrs, " ") }},
	}
	for _, pool := range pools {
		if matched, ok := c.widePositive.FirstMatch(pool.text()); ok {
			return &core.Evidence{Pool: pool.name, Phrase: matched}
		}
	}
	return nil
}

// Explain reports the strict decision for every candidate on page. It does
// not short-circuit and is meant for tuning phrase sets offline.
func (c *Classifier) Explain(page Page) []CandidateReport {
	if page == nil {
		return nil
	}
	var reports []CandidateReport
	for i, n := range page.Candidates() {
		own := dom.OwnText(n)
		r := CandidateReport{Index: i, Text: dom.Snippet(own, 80)}
		decision, matched := c.judge(own)
		switch {
		case decision != "":
			r.Decision = decision
		case !c.topic.pass(dom.LocalContext(n)):
			r.Decision = DecisionOffTopic
		default:
			r.Decision = DecisionAccepted
		}
		r.Phrase = matched
		reports = append(reports, r)
	}
	return reports
}

// topicGate holds normalized topical terms. Terms are plain substrings so a
// stem like "refurb" covers "refurbished".
type topicGate struct {
	required []string
	anyOf    []string
}

func newTopicGate(g core.TopicGate) topicGate {
	return topicGate{required: normalizeTerms(g.Required), anyOf: normalizeTerms(g.AnyOf)}
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := normalize.Text(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// pass reports whether ctx mentions every required term and, when
// qualifiers are configured, at least one of them.
func (g topicGate) pass(ctx string) bool {
	ctx = normalize.Text(ctx)
	for _, term := range g.required {
		if !strings.Contains(ctx, term) {
			return false
		}
	}
	if len(g.anyOf) == 0 {
		return true
	}
	for _, term := range g.anyOf {
		if strings.Contains(ctx, term) {
			return true
		}
	}
	return false
}
