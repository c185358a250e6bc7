// Package extractor is the language-model boundary: it turns one user
// utterance, in the context of the current step sequence, into a
// proposed delta or a clarification request. It never touches a step
// model itself.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rahul/scout/internal/steps"
	"github.com/tmc/langchaingo/llms"
)

// FailedError reports an LLM response that could not be decoded into a
// well-formed delta. The caller treats it like any other single-turn
// failure: report and leave the model untouched.
type FailedError struct {
	Reason string
	Err    error
}

func (e *FailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Request is one extraction round trip. Existing carries the full
// ordered step sequence; prior raw utterances are never sent, so the
// request stays bounded regardless of conversation length.
type Request struct {
	Existing []steps.Step
	// PageSummary is an optional plain-text summary of the most
	// recently navigated page, for grounding selector descriptions.
	PageSummary string
	// PendingQuestion is the clarifying question from the previous
	// turn, if the user is answering one.
	PendingQuestion string
	Utterance       string
}

// Result is either a proposed delta or a clarifying question, never both.
type Result struct {
	Delta    *steps.Delta
	Question string
}

const (
	toolProposeDelta = "propose_delta"
	toolClarify      = "request_clarification"
)

// Extractor adapts an llms.Model into the delta-extraction contract.
type Extractor struct {
	Model   llms.Model
	Prompts *PromptManager
}

func New(model llms.Model, prompts *PromptManager) *Extractor {
	return &Extractor{Model: model, Prompts: prompts}
}

// Extract asks the model to classify the utterance into one delta. The
// model answers via tool calling; everything it returns is decoded
// defensively. Cancellation and deadlines on ctx abort the round trip.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	systemPrompt := defaultSystemPrompt
	if e.Prompts != nil {
		if p, err := e.Prompts.GetExtractorPrompt(); err == nil {
			systemPrompt = p
		}
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildContext(req))},
		},
	}

	resp, err := e.Model.GenerateContent(ctx, messages, llms.WithTools(extractionTools))
	if err != nil {
		return nil, &FailedError{Reason: "language model call failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &FailedError{Reason: "empty response"}
	}
	choice := resp.Choices[0]

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		switch tc.FunctionCall.Name {
		case toolClarify:
			var args struct {
				Question string `json:"question"`
			}
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
				return nil, &FailedError{Reason: "unparseable clarification arguments", Err: err}
			}
			if strings.TrimSpace(args.Question) == "" {
				return nil, &FailedError{Reason: "clarification without a question"}
			}
			return &Result{Question: args.Question}, nil

		case toolProposeDelta:
			delta, err := decodeDelta(tc.FunctionCall.Arguments)
			if err != nil {
				return nil, err
			}
			return &Result{Delta: delta}, nil
		}
	}

	return nil, &FailedError{Reason: "response carried no recognized tool call"}
}

// decodeDelta turns raw tool-call arguments into a Delta from the fixed
// variant set. The wire shape is never trusted: operation and kind are
// checked against the recognized sets before anything is returned.
func decodeDelta(raw string) (*steps.Delta, error) {
	var wire struct {
		Operation string `json:"operation"`
		Step      *struct {
			Kind   string `json:"kind"`
			Target string `json:"target"`
			Value  string `json:"value"`
		} `json:"step"`
		TargetOrder *int   `json:"target_order"`
		Referent    string `json:"referent"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, &FailedError{Reason: "unparseable delta arguments", Err: err}
	}

	op := steps.Op(strings.ToLower(strings.TrimSpace(wire.Operation)))
	if !op.Known() {
		return nil, &FailedError{Reason: fmt.Sprintf("unrecognized operation %q", wire.Operation)}
	}

	delta := &steps.Delta{
		Op:          op,
		TargetOrder: wire.TargetOrder,
		Referent:    wire.Referent,
	}

	if wire.Step != nil {
		kind := steps.Kind(strings.ToLower(strings.TrimSpace(wire.Step.Kind)))
		if !kind.Known() {
			return nil, &FailedError{Reason: fmt.Sprintf("unrecognized step kind %q", wire.Step.Kind)}
		}
		delta.Step = &steps.Step{
			Kind:   kind,
			Target: wire.Step.Target,
			Value:  wire.Step.Value,
		}
	}

	if (op == steps.OpAdd || op == steps.OpModify) && delta.Step == nil {
		return nil, &FailedError{Reason: fmt.Sprintf("%s without a step", op)}
	}
	if op == steps.OpRemove && delta.TargetOrder == nil && strings.TrimSpace(delta.Referent) == "" {
		return nil, &FailedError{Reason: "remove without a target order or referent"}
	}

	return delta, nil
}

func buildContext(req Request) string {
	var b strings.Builder

	b.WriteString("Current test steps:\n")
	if len(req.Existing) == 0 {
		b.WriteString("(none yet)\n")
	} else {
		enc, _ := json.MarshalIndent(req.Existing, "", "  ")
		b.Write(enc)
		b.WriteString("\n")
	}

	if req.PageSummary != "" {
		b.WriteString("\nSummary of the page under test:\n")
		b.WriteString(req.PageSummary)
		b.WriteString("\n")
	}

	if req.PendingQuestion != "" {
		b.WriteString("\nYou previously asked the user: ")
		b.WriteString(req.PendingQuestion)
		b.WriteString("\nTreat the utterance below as the answer.\n")
	}

	b.WriteString("\nUser utterance:\n")
	b.WriteString(req.Utterance)
	return b.String()
}

var extractionTools = []llms.Tool{
	{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        toolProposeDelta,
			Description: "Propose exactly one change to the test step sequence based on the user's utterance.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"operation": map[string]any{
						"type":        "string",
						"enum":        []string{"add", "modify", "remove"},
						"description": "add: the utterance describes a brand-new action. modify: it corrects a previously stated action. remove: it retracts one.",
					},
					"step": map[string]any{
						"type":        "object",
						"description": "The new or replacement step (required for add and modify).",
						"properties": map[string]any{
							"kind": map[string]any{
								"type": "string",
								"enum": []string{"navigate", "click", "fill", "assert_text", "assert_visible", "scroll", "wait"},
							},
							"target": map[string]any{
								"type":        "string",
								"description": "CSS selector or plain description of the element (not used for navigate/wait).",
							},
							"value": map[string]any{
								"type":        "string",
								"description": "URL for navigate, text for fill/assert_text, duration for wait.",
							},
						},
						"required": []string{"kind"},
					},
					"target_order": map[string]any{
						"type":        "integer",
						"description": "Zero-based order of the existing step a modify/remove refers to, if you can tell.",
					},
					"referent": map[string]any{
						"type":        "string",
						"description": "The user's own words for the step a modify/remove refers to, when the order is unclear.",
					},
				},
				"required": []string{"operation"},
			},
		},
	},
	{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        toolClarify,
			Description: "Ask the user one clarifying question instead of proposing a delta, when the utterance cannot be resolved against the existing steps.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question": map[string]any{
						"type":        "string",
						"description": "The question to surface to the user.",
					},
				},
				"required": []string{"question"},
			},
		},
	},
}
