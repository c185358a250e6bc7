package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rahul/scout/internal/extractor"
	"github.com/rahul/scout/internal/governance"
	"github.com/rahul/scout/internal/steps"
)

type extractResponse struct {
	res *extractor.Result
	err error
}

// fakeExtractor replays queued responses and records every request.
type fakeExtractor struct {
	mu    sync.Mutex
	queue []extractResponse
	reqs  []extractor.Request
}

func (f *fakeExtractor) push(res *extractor.Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, extractResponse{res: res, err: err})
}

func (f *fakeExtractor) Extract(ctx context.Context, req extractor.Request) (*extractor.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if len(f.queue) == 0 {
		return nil, errors.New("fakeExtractor: queue exhausted")
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.res, next.err
}

type fakeGate struct {
	mu       sync.Mutex
	names    []string
	contents []string
}

func (g *fakeGate) Save(name, source string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.names = append(g.names, name)
	g.contents = append(g.contents, source)
	return "/workspace/tests/" + name + "_test.go", nil
}

func newTestEngine(ext IntentExtractor, gate ArtifactGate) *Engine {
	return NewEngine(ext, gate, governance.NewDefaultStepPolicy(), nil, Config{
		UndoDepth:      5,
		ExtractTimeout: 5 * time.Second,
	})
}

func addDelta(s steps.Step) *extractor.Result {
	return &extractor.Result{Delta: &steps.Delta{Op: steps.OpAdd, Step: &s}}
}

func TestHandleTurn_NavigateEndToEnd(t *testing.T) {
	ext := &fakeExtractor{}
	ext.push(addDelta(steps.Step{Kind: steps.KindNavigate, Value: "https://example.com"}), nil)
	e := newTestEngine(ext, &fakeGate{})

	res := e.HandleTurn(context.Background(), "s1", "navigate to https://example.com")

	if res.AwaitingClarification {
		t.Error("unexpected clarification")
	}
	got := e.Snapshot("s1")
	if len(got) != 1 || got[0].Kind != steps.KindNavigate || got[0].Value != "https://example.com" || got[0].Order != 0 {
		t.Fatalf("unexpected model: %+v", got)
	}
	if !strings.Contains(res.RenderedCode, `chromedp.Navigate("https://example.com")`) {
		t.Error("rendered code missing the navigate action")
	}
}

func TestHandleTurn_SaveDeliversRenderOnce(t *testing.T) {
	ext := &fakeExtractor{}
	ext.push(addDelta(steps.Step{Kind: steps.KindNavigate, Value: "https://example.com"}), nil)
	ext.push(addDelta(steps.Step{Kind: steps.KindClick, Target: "tariff button"}), nil)
	gate := &fakeGate{}
	e := newTestEngine(ext, gate)

	e.HandleTurn(context.Background(), "s1", "navigate to https://example.com")
	second := e.HandleTurn(context.Background(), "s1", "then click the tariff button")
	saved := e.HandleTurn(context.Background(), "s1", "save tariff_check")

	if len(gate.names) != 1 {
		t.Fatalf("expected exactly one save, got %d", len(gate.names))
	}
	if gate.names[0] != "tariff_check" {
		t.Errorf("unexpected artifact name %q", gate.names[0])
	}
	if gate.contents[0] != second.RenderedCode {
		t.Error("gate did not receive the current render")
	}
	if !strings.Contains(gate.contents[0], "chromedp.Navigate") || !strings.Contains(gate.contents[0], "chromedp.Click") {
		t.Error("saved source missing the two steps")
	}
	if saved.RenderedCode != second.RenderedCode {
		t.Error("save re-rendered a model that had not changed")
	}
}

func TestHandleTurn_AmbiguousRemoveLeavesModel(t *testing.T) {
	ext := &fakeExtractor{}
	ext.push(addDelta(steps.Step{Kind: steps.KindNavigate, Value: "https://example.com"}), nil)
	ext.push(addDelta(steps.Step{Kind: steps.KindClick, Target: "login link"}), nil)
	ext.push(&extractor.Result{Delta: &steps.Delta{Op: steps.OpRemove, Referent: "tariff button"}}, nil)
	e := newTestEngine(ext, &fakeGate{})

	e.HandleTurn(context.Background(), "s1", "navigate to https://example.com")
	e.HandleTurn(context.Background(), "s1", "click the login link")
	res := e.HandleTurn(context.Background(), "s1", "remove the tariff button step")

	if !res.AwaitingClarification {
		t.Fatal("expected a clarifying question")
	}
	if res.Message == "" {
		t.Error("clarification without a question")
	}
	if got := e.Snapshot("s1"); len(got) != 2 {
		t.Errorf("model changed by an ambiguous utterance: %+v", got)
	}
}

func TestHandleTurn_ClarificationAnswerCarriesQuestion(t *testing.T) {
	ext := &fakeExtractor{}
	ext.push(&extractor.Result{Question: "Which button do you mean?"}, nil)
	ext.push(addDelta(steps.Step{Kind: steps.KindClick, Target: "#blue"}), nil)
	e := newTestEngine(ext, &fakeGate{})

	res := e.HandleTurn(context.Background(), "s1", "click it")
	if !res.AwaitingClarification || res.Message != "Which button do you mean?" {
		t.Fatalf("expected the extractor's question, got %+v", res)
	}

	e.HandleTurn(context.Background(), "s1", "the blue one")
	if len(ext.reqs) != 2 {
		t.Fatalf("expected 2 extraction calls, got %d", len(ext.reqs))
	}
	if ext.reqs[1].PendingQuestion != "Which button do you mean?" {
		t.Errorf("answer turn did not carry the pending question, got %q", ext.reqs[1].PendingQuestion)
	}
}

func TestHandleTurn_UndoIsStrictInverse(t *testing.T) {
	ext := &fakeExtractor{}
	ext.push(addDelta(steps.Step{Kind: steps.KindNavigate, Value: "https://example.com"}), nil)
	ext.push(addDelta(steps.Step{Kind: steps.KindClick, Target: "tariff button"}), nil)
	e := newTestEngine(ext, &fakeGate{})

	e.HandleTurn(context.Background(), "s1", "navigate to https://example.com")
	before := e.Snapshot("s1")
	e.HandleTurn(context.Background(), "s1", "click the tariff button")
	e.HandleTurn(context.Background(), "s1", "undo")

	after := e.Snapshot("s1")
	if len(after) != len(before) {
		t.Fatalf("undo did not restore: before %d steps, after %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("step %d differs after undo: %+v vs %+v", i, before[i], after[i])
		}
	}
}

func TestHandleTurn_UndoOnEmptyStackReports(t *testing.T) {
	e := newTestEngine(&fakeExtractor{}, &fakeGate{})
	res := e.HandleTurn(context.Background(), "s1", "undo")
	if res.Message != "Nothing to undo." {
		t.Errorf("unexpected message %q", res.Message)
	}
}

func TestHandleTurn_UndoDepthBounded(t *testing.T) {
	ext := &fakeExtractor{}
	e := NewEngine(ext, &fakeGate{}, governance.NewDefaultStepPolicy(), nil, Config{
		UndoDepth:      2,
		ExtractTimeout: 5 * time.Second,
	})

	for i := 0; i < 5; i++ {
		ext.push(addDelta(steps.Step{Kind: steps.KindWait, Value: fmt.Sprintf("%ds", i+1)}), nil)
		e.HandleTurn(context.Background(), "s1", "wait a bit")
	}

	undone := 0
	for {
		res := e.HandleTurn(context.Background(), "s1", "undo")
		if res.Message == "Nothing to undo." {
			break
		}
		undone++
		if undone > 10 {
			t.Fatal("undo stack not bounded")
		}
	}
	if undone != 2 {
		t.Errorf("expected 2 undoable snapshots, got %d", undone)
	}
}

func TestHandleTurn_ExtractionFailureLeavesModel(t *testing.T) {
	ext := &fakeExtractor{}
	ext.push(addDelta(steps.Step{Kind: steps.KindNavigate, Value: "https://example.com"}), nil)
	ext.push(nil, &extractor.FailedError{Reason: "gibberish response"})
	e := newTestEngine(ext, &fakeGate{})

	e.HandleTurn(context.Background(), "s1", "navigate to https://example.com")
	res := e.HandleTurn(context.Background(), "s1", "do the thing")

	if !strings.Contains(res.Message, "rephrase") {
		t.Errorf("expected a rephrase prompt, got %q", res.Message)
	}
	if got := e.Snapshot("s1"); len(got) != 1 {
		t.Errorf("model changed by a failed extraction: %+v", got)
	}
}

// slowExtractor blocks until its context is cancelled.
type slowExtractor struct{}

func (slowExtractor) Extract(ctx context.Context, req extractor.Request) (*extractor.Result, error) {
	<-ctx.Done()
	return nil, &extractor.FailedError{Reason: "language model call failed", Err: ctx.Err()}
}

func TestHandleTurn_ExtractionTimeout(t *testing.T) {
	e := NewEngine(slowExtractor{}, &fakeGate{}, governance.NewDefaultStepPolicy(), nil, Config{
		ExtractTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	res := e.HandleTurn(context.Background(), "s1", "click the button")
	if time.Since(start) > 2*time.Second {
		t.Error("turn did not respect the extraction timeout")
	}
	if res.AwaitingClarification {
		t.Error("timeout must not look like a clarification")
	}
	if got := e.Snapshot("s1"); len(got) != 0 {
		t.Errorf("model changed by a timed-out extraction: %+v", got)
	}
}

func TestHandleTurn_RejectedDeltaReported(t *testing.T) {
	ext := &fakeExtractor{}
	order := 9
	ext.push(&extractor.Result{Delta: &steps.Delta{Op: steps.OpRemove, TargetOrder: &order}}, nil)
	e := newTestEngine(ext, &fakeGate{})

	res := e.HandleTurn(context.Background(), "s1", "remove step nine")
	if !strings.Contains(res.Message, "couldn't apply") {
		t.Errorf("expected an apply failure message, got %q", res.Message)
	}
	if got := e.Snapshot("s1"); len(got) != 0 {
		t.Errorf("model changed by a rejected delta: %+v", got)
	}
}

func TestHandleTurn_PolicyDeniesNavigate(t *testing.T) {
	ext := &fakeExtractor{}
	ext.push(addDelta(steps.Step{Kind: steps.KindNavigate, Value: "javascript:alert(1)"}), nil)
	e := newTestEngine(ext, &fakeGate{})

	res := e.HandleTurn(context.Background(), "s1", "navigate to javascript:alert(1)")
	if !strings.Contains(res.Message, "not allowed") {
		t.Errorf("expected a policy denial, got %q", res.Message)
	}
	if got := e.Snapshot("s1"); len(got) != 0 {
		t.Errorf("model changed by a denied delta: %+v", got)
	}
}

func TestHandleTurn_ModifyResolvedByOverlap(t *testing.T) {
	ext := &fakeExtractor{}
	ext.push(addDelta(steps.Step{Kind: steps.KindNavigate, Value: "https://example.com"}), nil)
	ext.push(addDelta(steps.Step{Kind: steps.KindClick, Target: "tariff button"}), nil)
	ext.push(&extractor.Result{Delta: &steps.Delta{
		Op:       steps.OpModify,
		Step:     &steps.Step{Kind: steps.KindClick, Target: "tariff overview button"},
		Referent: "tariff button",
	}}, nil)
	e := newTestEngine(ext, &fakeGate{})

	e.HandleTurn(context.Background(), "s1", "navigate to https://example.com")
	e.HandleTurn(context.Background(), "s1", "click the tariff button")
	res := e.HandleTurn(context.Background(), "s1", "actually click the tariff overview button")

	if res.AwaitingClarification {
		t.Fatalf("modify should have resolved, got clarification %q", res.Message)
	}
	got := e.Snapshot("s1")
	if len(got) != 2 || got[1].Target != "tariff overview button" {
		t.Errorf("modify did not replace the intended step: %+v", got)
	}
}

func TestHandleTurn_SessionsAreIndependent(t *testing.T) {
	ext := &fakeExtractor{}
	ext.push(addDelta(steps.Step{Kind: steps.KindNavigate, Value: "https://one.example"}), nil)
	ext.push(addDelta(steps.Step{Kind: steps.KindNavigate, Value: "https://two.example"}), nil)
	e := newTestEngine(ext, &fakeGate{})

	e.HandleTurn(context.Background(), "alpha", "navigate to https://one.example")
	e.HandleTurn(context.Background(), "beta", "navigate to https://two.example")

	a := e.Snapshot("alpha")
	b := e.Snapshot("beta")
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected one step each, got %d and %d", len(a), len(b))
	}
	if a[0].Value == b[0].Value {
		t.Error("sessions leaked state")
	}
}

func TestEvictIdle(t *testing.T) {
	e := NewEngine(&fakeExtractor{}, &fakeGate{}, governance.NewDefaultStepPolicy(), nil, Config{
		SessionTTL: 10 * time.Millisecond,
	})
	e.HandleTurn(context.Background(), "old", "undo")

	time.Sleep(20 * time.Millisecond)
	e.evictIdle()

	e.mu.Lock()
	_, alive := e.sessions["old"]
	e.mu.Unlock()
	if alive {
		t.Error("idle session not evicted")
	}
}
