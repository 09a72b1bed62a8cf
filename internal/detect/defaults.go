package detect

import "stockwatch/internal/core"

// Default phrase sets, copied into a target that leaves a set empty.
var (
	DefaultStrictPositive = []string{
		"add to cart",
		"buy now",
		"in stock",
	}

	DefaultNegative = []string{
		"out of stock",
		"unavailable",
		"sold out",
		"notify me",
	}

	DefaultWidePositive = []string{
		"add to cart",
		"buy now",
		"in stock",
		"purchase",
		"checkout",
		"reserve",
		"pre-order",
		"order now",
	}
)

// ApplyDefaults fills empty strategy and phrase fields of t. Slices are
// copied so callers may modify the result freely.
func ApplyDefaults(t core.Target) core.Target {
	if t.Strategy == "" {
		t.Strategy = core.StrategyStrict
	}
	if len(t.Phrases.StrictPositive) == 0 {
		t.Phrases.StrictPositive = clone(DefaultStrictPositive)
	}
	if len(t.Phrases.Negative) == 0 {
		t.Phrases.Negative = clone(DefaultNegative)
	}
	if len(t.Phrases.WidePositive) == 0 {
		t.Phrases.WidePositive = clone(DefaultWidePositive)
	}
	return t
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
