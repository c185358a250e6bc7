package steps

import (
	"fmt"
	"strings"
)

// Kind identifies one browser action type a step can stand for.
type Kind string

const (
	KindNavigate      Kind = "navigate"
	KindClick         Kind = "click"
	KindFill          Kind = "fill"
	KindAssertText    Kind = "assert_text"
	KindAssertVisible Kind = "assert_visible"
	KindScroll        Kind = "scroll"
	KindWait          Kind = "wait"
)

// Kinds lists every recognized step kind in a stable order.
var Kinds = []Kind{
	KindNavigate, KindClick, KindFill,
	KindAssertText, KindAssertVisible,
	KindScroll, KindWait,
}

func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Step is one discrete browser action in the synthesized test.
type Step struct {
	Kind   Kind   `json:"kind"`
	Target string `json:"target,omitempty"`
	Value  string `json:"value,omitempty"`
	Order  int    `json:"order"`
}

func (s Step) String() string {
	parts := []string{string(s.Kind)}
	if s.Target != "" {
		parts = append(parts, fmt.Sprintf("%q", s.Target))
	}
	if s.Value != "" {
		parts = append(parts, fmt.Sprintf("= %q", s.Value))
	}
	return strings.Join(parts, " ")
}

// InvalidStepError reports a step whose content does not satisfy the
// requirements of its kind.
type InvalidStepError struct {
	Reason string
}

func (e *InvalidStepError) Error() string {
	return fmt.Sprintf("invalid step: %s", e.Reason)
}

// Validate checks that a step carries the fields its kind requires.
// Target is mandatory for every kind except navigate and wait; value is
// mandatory where the action has a payload (URL, text to type, expected
// text).
func Validate(s Step) error {
	if !s.Kind.Known() {
		return &InvalidStepError{Reason: fmt.Sprintf("unknown kind %q", s.Kind)}
	}

	needsTarget := s.Kind != KindNavigate && s.Kind != KindWait
	if needsTarget && strings.TrimSpace(s.Target) == "" {
		return &InvalidStepError{Reason: fmt.Sprintf("%s requires a target selector", s.Kind)}
	}

	switch s.Kind {
	case KindNavigate:
		if strings.TrimSpace(s.Value) == "" {
			return &InvalidStepError{Reason: "navigate requires a URL value"}
		}
	case KindFill:
		if s.Value == "" {
			return &InvalidStepError{Reason: "fill requires the text to type"}
		}
	case KindAssertText:
		if s.Value == "" {
			return &InvalidStepError{Reason: "assert_text requires the expected text"}
		}
	}

	return nil
}
