// Package session owns the per-conversation state machine: it applies
// extracted deltas to a step model, tracks undo history, and decides
// when to ask the user a clarifying question instead of guessing.
package session

import (
	"sync"
	"time"

	"github.com/rahul/scout/internal/steps"
)

// State is where a session sits within one turn. Transitions are
// strictly turn-based; a session is never re-entered while a turn is in
// flight.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingDelta State = "awaiting_delta"
	StateApplying      State = "applying"
	StateClarifying    State = "clarifying"
)

// Session is the per-conversation container: the current step model,
// its bounded undo history, and the render cache.
type Session struct {
	ID    string
	Model steps.Model

	mu    sync.Mutex
	state State

	// undo holds model snapshots, oldest first. Depth is bounded by
	// the engine config; oldest snapshots are evicted beyond it.
	undo []steps.Model

	// lastRendered caches the render of the current model.
	// renderStale marks it invalid after any committed change.
	lastRendered string
	renderStale  bool

	// pendingQuestion is the clarifying question the engine is
	// waiting on, if any. The next utterance is treated as its answer.
	pendingQuestion string

	// currentURL is the value of the most recent navigate step,
	// handed to the page probe for selector grounding.
	currentURL string

	lastTurn time.Time
}

func newSession(id string) *Session {
	return &Session{
		ID:          id,
		state:       StateIdle,
		renderStale: true,
		lastTurn:    time.Now(),
	}
}

func (s *Session) pushUndo(m steps.Model, depth int) {
	s.undo = append(s.undo, m)
	if depth > 0 && len(s.undo) > depth {
		s.undo = s.undo[len(s.undo)-depth:]
	}
}

func (s *Session) popUndo() (steps.Model, bool) {
	if len(s.undo) == 0 {
		return steps.Model{}, false
	}
	m := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	return m, true
}
