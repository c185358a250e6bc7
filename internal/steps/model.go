package steps

import "fmt"

// Op is the operation a delta performs on the step sequence.
type Op string

const (
	OpAdd    Op = "add"
	OpModify Op = "modify"
	OpRemove Op = "remove"
)

func (o Op) Known() bool {
	return o == OpAdd || o == OpModify || o == OpRemove
}

// Delta is a proposed single change to the step sequence, derived from
// one user utterance. It is consumed by exactly one apply cycle and
// never stored.
type Delta struct {
	Op          Op    `json:"operation"`
	Step        *Step `json:"step,omitempty"`
	TargetOrder *int  `json:"target_order,omitempty"`
	// Referent carries the user's free-text mention of the step a
	// modify/remove refers to, for resolution when no order is given.
	Referent string `json:"referent,omitempty"`
}

// RejectedDeltaError reports a delta that cannot be applied to the
// current model, such as a modify at an order that does not exist.
type RejectedDeltaError struct {
	Reason string
}

func (e *RejectedDeltaError) Error() string {
	return fmt.Sprintf("rejected delta: %s", e.Reason)
}

// Model is the ordered step sequence of one session. The zero value is
// the empty model. A Model is immutable: Apply returns a new Model and
// leaves the receiver untouched, so the caller decides whether to
// commit the result.
type Model struct {
	list []Step
}

// FromSteps builds a model from a slice, re-sequencing orders to 0..n-1.
func FromSteps(list []Step) Model {
	out := make([]Step, len(list))
	copy(out, list)
	resequence(out)
	return Model{list: out}
}

// Steps returns a copy of the step sequence in order.
func (m Model) Steps() []Step {
	out := make([]Step, len(m.list))
	copy(out, m.list)
	return out
}

func (m Model) Len() int { return len(m.list) }

// At returns the step at the given order.
func (m Model) At(order int) (Step, bool) {
	if order < 0 || order >= len(m.list) {
		return Step{}, false
	}
	return m.list[order], true
}

// Equal reports whether two models hold the same step sequence.
func (m Model) Equal(other Model) bool {
	if len(m.list) != len(other.list) {
		return false
	}
	for i := range m.list {
		if m.list[i] != other.list[i] {
			return false
		}
	}
	return true
}

// Apply produces the model that results from one delta. The returned
// model is always fully re-sequenced (orders 0..n-1, gap-free); on any
// error the original model is usable unchanged.
func (m Model) Apply(d Delta) (Model, error) {
	switch d.Op {
	case OpAdd:
		return m.add(d)
	case OpModify:
		return m.modify(d)
	case OpRemove:
		return m.remove(d)
	default:
		return Model{}, &RejectedDeltaError{Reason: fmt.Sprintf("unknown operation %q", d.Op)}
	}
}

func (m Model) add(d Delta) (Model, error) {
	if d.Step == nil {
		return Model{}, &RejectedDeltaError{Reason: "add without a step"}
	}
	if err := Validate(*d.Step); err != nil {
		return Model{}, err
	}

	at := len(m.list)
	if d.TargetOrder != nil {
		at = *d.TargetOrder
		if at < 0 || at > len(m.list) {
			return Model{}, &RejectedDeltaError{Reason: fmt.Sprintf("insert position %d out of range 0..%d", at, len(m.list))}
		}
	}

	out := make([]Step, 0, len(m.list)+1)
	out = append(out, m.list[:at]...)
	out = append(out, *d.Step)
	out = append(out, m.list[at:]...)
	resequence(out)
	return Model{list: out}, nil
}

func (m Model) modify(d Delta) (Model, error) {
	if d.Step == nil {
		return Model{}, &RejectedDeltaError{Reason: "modify without a replacement step"}
	}
	if d.TargetOrder == nil {
		return Model{}, &RejectedDeltaError{Reason: "modify without a target order"}
	}
	at := *d.TargetOrder
	if at < 0 || at >= len(m.list) {
		return Model{}, &RejectedDeltaError{Reason: fmt.Sprintf("no step at order %d", at)}
	}
	if err := Validate(*d.Step); err != nil {
		return Model{}, err
	}

	out := make([]Step, len(m.list))
	copy(out, m.list)
	out[at] = *d.Step
	resequence(out)
	return Model{list: out}, nil
}

func (m Model) remove(d Delta) (Model, error) {
	if d.TargetOrder == nil {
		return Model{}, &RejectedDeltaError{Reason: "remove without a target order"}
	}
	at := *d.TargetOrder
	if at < 0 || at >= len(m.list) {
		return Model{}, &RejectedDeltaError{Reason: fmt.Sprintf("no step at order %d", at)}
	}

	out := make([]Step, 0, len(m.list)-1)
	out = append(out, m.list[:at]...)
	out = append(out, m.list[at+1:]...)
	resequence(out)
	return Model{list: out}, nil
}

func resequence(list []Step) {
	for i := range list {
		list[i].Order = i
	}
}
