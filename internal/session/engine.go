package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rahul/scout/internal/extractor"
	"github.com/rahul/scout/internal/governance"
	"github.com/rahul/scout/internal/observability"
	"github.com/rahul/scout/internal/render"
	"github.com/rahul/scout/internal/steps"
)

// IntentExtractor is the language-model boundary the engine calls once
// per non-reserved utterance. *extractor.Extractor satisfies it.
type IntentExtractor interface {
	Extract(ctx context.Context, req extractor.Request) (*extractor.Result, error)
}

// ArtifactGate receives rendered source on an explicit save.
type ArtifactGate interface {
	Save(name, source string) (string, error)
}

// Prober supplies a plain-text summary of a page for selector
// grounding. Optional; failures never fail a turn.
type Prober interface {
	Summary(ctx context.Context, url string) (string, error)
}

// TranscriptSink records turns for later inspection. Optional.
type TranscriptSink interface {
	AddTurn(sessionID, role, content string) error
}

// TurnResult is what a gateway shows the user after one turn.
type TurnResult struct {
	RenderedCode          string
	Message               string
	AwaitingClarification bool
}

// Config bounds the engine's per-session resources.
type Config struct {
	UndoDepth      int
	ExtractTimeout time.Duration
	ProbeTimeout   time.Duration
	SessionTTL     time.Duration
}

func (c Config) withDefaults() Config {
	if c.UndoDepth <= 0 {
		c.UndoDepth = 20
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 30 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 15 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = time.Hour
	}
	return c
}

// Engine owns all sessions and drives one turn to completion at a time
// per session. Sessions share no mutable state, so independent
// conversations proceed concurrently without coordination.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*Session

	extractor IntentExtractor
	gate      ArtifactGate
	policy    *governance.StepPolicy
	logger    *observability.Logger
	cfg       Config

	// Optional collaborators, wired after construction.
	Probe      Prober
	Transcript TranscriptSink
}

func NewEngine(ext IntentExtractor, gate ArtifactGate, policy *governance.StepPolicy, logger *observability.Logger, cfg Config) *Engine {
	return &Engine{
		sessions:  make(map[string]*Session),
		extractor: ext,
		gate:      gate,
		policy:    policy,
		logger:    logger,
		cfg:       cfg.withDefaults(),
	}
}

// session resolves an owned session, creating it on first use, and
// reports the current session count.
func (e *Engine) session(id string) (*Session, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		s = newSession(id)
		e.sessions[id] = s
	}
	return s, len(e.sessions)
}

// Snapshot returns the current step sequence of a session, for display.
func (e *Engine) Snapshot(sessionID string) []steps.Step {
	s, _ := e.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Model.Steps()
}

// HandleTurn processes one utterance to completion. Reserved
// utterances ("undo", "save [name]", "show") act on the session
// directly; everything else goes through the intent extractor. Every
// failure is local to the turn: the step model only ever changes by a
// fully applied delta or a popped undo snapshot.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, utterance string) TurnResult {
	s, count := e.session(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTurn = time.Now()

	utterance = strings.TrimSpace(utterance)
	if e.logger != nil {
		e.logger.LogTurn(sessionID, utterance)
	}
	e.record(sessionID, "user", utterance)
	observability.SetStatus(count, utterance)

	res := e.dispatch(ctx, s, utterance)

	e.record(sessionID, "engine", res.Message)
	return res
}

func (e *Engine) record(sessionID, role, content string) {
	if e.Transcript == nil || content == "" {
		return
	}
	if err := e.Transcript.AddTurn(sessionID, role, content); err != nil && e.logger != nil {
		e.logger.Log(observability.Event{
			Type:      observability.EventTypeSession,
			SessionID: sessionID,
			Data:      map[string]string{"transcript_error": err.Error()},
		})
	}
}

func (e *Engine) dispatch(ctx context.Context, s *Session, utterance string) TurnResult {
	lower := strings.ToLower(utterance)
	switch {
	case utterance == "":
		return TurnResult{Message: "Tell me what the test should do next."}
	case lower == "undo":
		return e.undo(s)
	case lower == "save" || strings.HasPrefix(lower, "save "):
		return e.save(s, strings.TrimSpace(utterance[len("save"):]))
	case lower == "show":
		return e.show(s)
	default:
		return e.applyUtterance(ctx, s, utterance)
	}
}

func (e *Engine) undo(s *Session) TurnResult {
	prev, ok := s.popUndo()
	if !ok {
		return TurnResult{Message: "Nothing to undo."}
	}
	s.Model = prev
	s.renderStale = true
	code, err := e.refreshRender(s)
	if err != nil {
		return e.renderFailure(s, err)
	}
	return TurnResult{
		RenderedCode: code,
		Message:      fmt.Sprintf("Undid the last change. The scenario now has %d step(s).", s.Model.Len()),
	}
}

func (e *Engine) save(s *Session, name string) TurnResult {
	if name == "" {
		name = "scenario"
	}
	if !governance.ValidArtifactName(name) {
		return TurnResult{Message: fmt.Sprintf("%q is not a usable name. Letters, digits, '-' and '_' only.", name)}
	}

	code, err := e.refreshRender(s)
	if err != nil {
		return e.renderFailure(s, err)
	}

	path, err := e.gate.Save(name, code)
	if err != nil {
		return TurnResult{Message: fmt.Sprintf("Saving failed: %v", err)}
	}
	if e.logger != nil {
		e.logger.LogSave(s.ID, name, path)
	}
	return TurnResult{
		RenderedCode: code,
		Message:      fmt.Sprintf("Saved the test to %s.", path),
	}
}

func (e *Engine) show(s *Session) TurnResult {
	code, err := e.refreshRender(s)
	if err != nil {
		return e.renderFailure(s, err)
	}
	return TurnResult{
		RenderedCode: code,
		Message:      fmt.Sprintf("Current scenario with %d step(s).", s.Model.Len()),
	}
}

func (e *Engine) applyUtterance(ctx context.Context, s *Session, utterance string) TurnResult {
	s.state = StateAwaitingDelta
	defer func() { s.state = StateIdle }()

	req := extractor.Request{
		Existing:        s.Model.Steps(),
		Utterance:       utterance,
		PendingQuestion: s.pendingQuestion,
	}

	if e.Probe != nil && s.currentURL != "" {
		pctx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout)
		summary, err := e.Probe.Summary(pctx, s.currentURL)
		cancel()
		if err == nil {
			req.PageSummary = summary
		}
	}

	ectx, cancel := context.WithTimeout(ctx, e.cfg.ExtractTimeout)
	defer cancel()

	result, err := e.extractor.Extract(ectx, req)
	if err != nil {
		// Timeouts and malformed responses alike: report, leave the
		// model untouched, and let the user restate. No retries.
		if e.logger != nil {
			e.logger.LogExtractFailed(s.ID, err.Error())
		}
		return TurnResult{Message: fmt.Sprintf("I couldn't turn that into a test step (%v). Please rephrase.", err)}
	}

	if result.Question != "" {
		s.state = StateClarifying
		s.pendingQuestion = result.Question
		return TurnResult{Message: result.Question, AwaitingClarification: true}
	}

	delta := *result.Delta

	if delta.Op == steps.OpModify || delta.Op == steps.OpRemove {
		order, ok := resolveTarget(s.Model, delta, utterance)
		if !ok {
			s.state = StateClarifying
			question := fmt.Sprintf("I couldn't find an existing step matching %q. Which step did you mean?", referentFor(delta, utterance))
			s.pendingQuestion = question
			return TurnResult{Message: question, AwaitingClarification: true}
		}
		delta.TargetOrder = &order
	}

	if verdict := e.policy.Evaluate(delta); verdict.Effect == governance.EffectDeny {
		if e.logger != nil {
			e.logger.LogDelta(s.ID, string(delta.Op), "denied: "+verdict.Reason)
		}
		return TurnResult{Message: fmt.Sprintf("That step is not allowed: %s.", verdict.Reason)}
	}

	s.state = StateApplying
	next, err := s.Model.Apply(delta)
	if err != nil {
		if e.logger != nil {
			e.logger.LogDelta(s.ID, string(delta.Op), "rejected: "+err.Error())
		}
		return TurnResult{Message: fmt.Sprintf("I couldn't apply that change: %v.", err)}
	}

	s.pushUndo(s.Model, e.cfg.UndoDepth)
	s.Model = next
	s.renderStale = true
	s.pendingQuestion = ""

	if delta.Step != nil && delta.Step.Kind == steps.KindNavigate {
		s.currentURL = delta.Step.Value
	}

	if e.logger != nil {
		e.logger.LogDelta(s.ID, string(delta.Op), "applied")
	}

	code, err := e.refreshRender(s)
	if err != nil {
		return e.renderFailure(s, err)
	}

	return TurnResult{
		RenderedCode: code,
		Message:      describeDelta(delta, s.Model),
	}
}

// refreshRender returns the cached render, re-rendering only when the
// model changed since the last one.
func (e *Engine) refreshRender(s *Session) (string, error) {
	if !s.renderStale {
		return s.lastRendered, nil
	}
	code, err := render.Render(s.Model)
	if err != nil {
		return "", err
	}
	s.lastRendered = code
	s.renderStale = false
	if e.logger != nil {
		e.logger.LogRender(s.ID, s.Model.Len(), len(code))
	}
	return code, nil
}

// renderFailure handles the should-be-unreachable case of a render
// error: admission-time validation let a bad step through. Surfaced
// loudly, never silently degraded.
func (e *Engine) renderFailure(s *Session, err error) TurnResult {
	s.renderStale = true
	if e.logger != nil {
		e.logger.LogDelta(s.ID, "render", "internal error: "+err.Error())
	}
	return TurnResult{Message: fmt.Sprintf("INTERNAL: rendering failed (%v). This is a bug; the step sequence was not saved.", err)}
}

func describeDelta(d steps.Delta, after steps.Model) string {
	switch d.Op {
	case steps.OpAdd:
		order := after.Len() - 1
		if d.TargetOrder != nil {
			order = *d.TargetOrder
		}
		if s, ok := after.At(order); ok {
			return fmt.Sprintf("Added step %d: %s.", order, s)
		}
		return "Added a step."
	case steps.OpModify:
		if s, ok := after.At(*d.TargetOrder); ok {
			return fmt.Sprintf("Updated step %d: %s.", *d.TargetOrder, s)
		}
		return "Updated a step."
	case steps.OpRemove:
		return fmt.Sprintf("Removed step %d. The scenario now has %d step(s).", *d.TargetOrder, after.Len())
	}
	return "Applied the change."
}

func referentFor(d steps.Delta, utterance string) string {
	if strings.TrimSpace(d.Referent) != "" {
		return d.Referent
	}
	return utterance
}
