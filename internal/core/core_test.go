package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStrategyValid(t *testing.T) {
	testCases := []struct {
		strategy Strategy
		valid    bool
	}{
		{StrategyStrict, true},
		{StrategyBroad, true},
		{"", false},
		{"Strict", false},
		{"fuzzy", false},
	}

	for _, tc := range testCases {
		if got := tc.strategy.Valid(); got != tc.valid {
			t.Errorf("Strategy(%q).Valid() = %v, want %v", tc.strategy, got, tc.valid)
		}
	}
}

func TestTopicGateEmpty(t *testing.T) {
	if !(TopicGate{}).Empty() {
		t.Error("zero gate should be empty")
	}
	if (TopicGate{AnyOf: []string{"refurb"}}).Empty() {
		t.Error("gate with any_of terms should not be empty")
	}
}

func TestStatePresent(t *testing.T) {
	if (State{}).Present() {
		t.Error("zero state should not be present")
	}
	if !(State{LastHash: "0123456789abcdef"}).Present() {
		t.Error("state with a hash should be present")
	}
}

func TestStateJSON(t *testing.T) {
	var s State
	if err := json.Unmarshal([]byte(`{"last_hash": "0123456789abcdef"}`), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s.LastHash != "0123456789abcdef" || !s.UpdatedAt.IsZero() {
		t.Errorf("unexpected state %+v", s)
	}

	s.UpdatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"last_hash":"0123456789abcdef","updated_at":"2024-03-01T12:00:00Z"}` {
		t.Errorf("unexpected encoding %s", data)
	}
}

func TestVerdictOmitsNilEvidence(t *testing.T) {
	data, err := json.Marshal(Verdict{Target: "deck", URL: "u", Strategy: StrategyStrict})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"purchasable":false,"target":"deck","url":"u","strategy":"strict"}` {
		t.Errorf("unexpected encoding %s", data)
	}
}
