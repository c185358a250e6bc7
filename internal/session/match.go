package session

import (
	"strings"

	"github.com/rahul/scout/internal/steps"
)

// Words that carry no information about WHICH step the user means.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "of": true,
	"on": true, "in": true, "at": true, "is": true, "it": true,
	"that": true, "this": true, "step": true, "steps": true,
	"please": true, "remove": true, "delete": true, "drop": true,
	"change": true, "modify": true, "update": true, "edit": true,
	"make": true, "set": true, "instead": true, "should": true,
}

// resolveTarget picks which existing step a modify/remove delta refers
// to. An explicit target order from the extractor is passed through
// verbatim, in or out of range, so out-of-range orders surface as
// rejected deltas rather than silent re-matches. Without an order the
// referent text is matched by token overlap: most-recently-added step
// with the highest overlap wins, exact ties resolved by highest order.
// Zero overlap means no resolvable match.
func resolveTarget(m steps.Model, d steps.Delta, utterance string) (int, bool) {
	if d.TargetOrder != nil {
		return *d.TargetOrder, true
	}

	referent := d.Referent
	if strings.TrimSpace(referent) == "" {
		referent = utterance
	}
	if d.Step != nil && d.Step.Target != "" {
		referent += " " + d.Step.Target
	}

	return matchStep(m.Steps(), referent)
}

func matchStep(list []steps.Step, referent string) (int, bool) {
	ref := tokenize(referent)
	if len(ref) == 0 {
		return 0, false
	}

	best := -1
	bestScore := 0
	for _, s := range list {
		cand := tokenize(s.Target + " " + s.Value + " " + string(s.Kind))
		score := overlap(ref, cand)
		// >= so that later (more recent) steps win exact ties.
		if score > 0 && score >= bestScore {
			best = s.Order
			bestScore = score
		}
	}

	if best < 0 {
		return 0, false
	}
	return best, true
}

func tokenize(text string) map[string]bool {
	out := make(map[string]bool)
	word := strings.Builder{}
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := strings.ToLower(word.String())
		word.Reset()
		if len(w) < 2 || stopwords[w] {
			return
		}
		out[w] = true
	}
	for _, r := range text {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}
