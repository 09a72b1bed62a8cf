package core

import "time"

// Strategy selects how a target's pages are classified.
type Strategy string

const (
	// StrategyStrict anchors evidence to a single interactive element and
	// corroborates it with nearby descriptive text.
	StrategyStrict Strategy = "strict"
	// StrategyBroad scans whole text pools with a wide phrase set and accepts
	// more false positives in exchange for recall.
	StrategyBroad Strategy = "broad"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategyStrict || s == StrategyBroad
}

// PhraseConfig holds the phrase sets a target is classified with.
type PhraseConfig struct {
	StrictPositive []string `json:"strict_positive"` // Narrow purchase phrases used by the strict strategy
	WidePositive   []string `json:"wide_positive"`   // Wide purchase phrases used by the broad strategy
	Negative       []string `json:"negative"`        // Availability-denial phrases that veto a strict candidate
}

// TopicGate describes the terms a strict candidate's context must mention.
type TopicGate struct {
	Required []string `json:"required"` // Every term must appear (product family)
	AnyOf    []string `json:"any_of"`   // At least one term must appear (condition/variant)
}

// Empty reports whether the gate names no terms at all.
func (g TopicGate) Empty() bool {
	return len(g.Required) == 0 && len(g.AnyOf) == 0
}

// Target is one monitored product page (or set of mirror pages).
type Target struct {
	Name     string       `json:"name"`     // Human-readable name used in alerts and logs
	URLs     []string     `json:"urls"`     // Pages fetched in order; the first positive one is reported
	Strategy Strategy     `json:"strategy"` // Detection strategy for every URL of this target
	Phrases  PhraseConfig `json:"phrases"`  // Phrase sets for the chosen strategy
	Topic    TopicGate    `json:"topic"`    // Topical gate for the strict strategy
}

// Evidence records what produced a positive verdict. It is advisory and only
// used for logging and for the alert message.
type Evidence struct {
	Pool     string `json:"pool"`              // "node" for strict hits, otherwise the broad pool name
	Phrase   string `json:"phrase"`            // Pattern that matched
	NodeText string `json:"node_text"`         // Own text of the triggering node (strict only)
	Context  string `json:"context,omitempty"` // Context window that passed the topical gate (strict only)
}

// Verdict is the result of classifying one fetched page.
type Verdict struct {
	Purchasable bool      `json:"purchasable"`
	Target      string    `json:"target"`
	URL         string    `json:"url"`
	Strategy    Strategy  `json:"strategy"`
	Evidence    *Evidence `json:"evidence,omitempty"`
}

// State is the single durable record used to de-duplicate alerts.
type State struct {
	LastHash  string    `json:"last_hash,omitempty"`  // Fingerprint of the last alerted page state
	UpdatedAt time.Time `json:"updated_at,omitempty"` // When LastHash was written
}

// Present reports whether a previous alert has been recorded.
func (s State) Present() bool {
	return s.LastHash != ""
}
