package session

import (
	"testing"

	"github.com/rahul/scout/internal/steps"
)

func TestMatchStep_TokenOverlap(t *testing.T) {
	list := []steps.Step{
		{Kind: steps.KindNavigate, Value: "https://example.com", Order: 0},
		{Kind: steps.KindClick, Target: "tariff button", Order: 1},
		{Kind: steps.KindFill, Target: "postcode input", Value: "70173", Order: 2},
	}

	cases := []struct {
		referent string
		want     int
		ok       bool
	}{
		{"the tariff button", 1, true},
		{"postcode", 2, true},
		{"remove the cart icon step", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		got, ok := matchStep(list, tc.referent)
		if ok != tc.ok {
			t.Errorf("matchStep(%q) ok = %v, want %v", tc.referent, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("matchStep(%q) = %d, want %d", tc.referent, got, tc.want)
		}
	}
}

func TestMatchStep_RecencyBreaksTies(t *testing.T) {
	list := []steps.Step{
		{Kind: steps.KindClick, Target: "submit button", Order: 0},
		{Kind: steps.KindClick, Target: "submit button", Order: 1},
	}

	got, ok := matchStep(list, "the submit button")
	if !ok {
		t.Fatal("expected a match")
	}
	if got != 1 {
		t.Errorf("expected the most recent step (order 1), got %d", got)
	}
}

func TestMatchStep_HighestOverlapWins(t *testing.T) {
	list := []steps.Step{
		{Kind: steps.KindClick, Target: "green tariff button", Order: 0},
		{Kind: steps.KindClick, Target: "cookie banner", Order: 1},
	}

	got, ok := matchStep(list, "change the green tariff button")
	if !ok {
		t.Fatal("expected a match")
	}
	if got != 0 {
		t.Errorf("expected order 0 (higher overlap), got %d", got)
	}
}

func TestResolveTarget_ExplicitOrderPassesThrough(t *testing.T) {
	m := steps.FromSteps([]steps.Step{{Kind: steps.KindClick, Target: "#a"}})
	order := 7 // out of range on purpose; Apply will reject it
	got, ok := resolveTarget(m, steps.Delta{Op: steps.OpRemove, TargetOrder: &order}, "remove step seven")
	if !ok || got != 7 {
		t.Errorf("explicit order should pass through, got %d ok=%v", got, ok)
	}
}
