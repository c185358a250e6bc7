package governance

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rahul/scout/internal/steps"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// StepPolicy screens deltas before they are applied to a session's
// model. It keeps a deny list of URL schemes for navigate steps and
// regex deny rules for selector targets.
type StepPolicy struct {
	DeniedSchemes map[string]bool
	DeniedTargets []*regexp.Regexp
}

func NewDefaultStepPolicy() *StepPolicy {
	p := &StepPolicy{
		DeniedSchemes: make(map[string]bool),
	}
	// Rendered tests drive a real browser; never let a navigate step
	// smuggle in script execution or local file access.
	p.DenyScheme("javascript")
	p.DenyScheme("file")
	p.DenyScheme("data")
	return p
}

func (p *StepPolicy) DenyScheme(scheme string) {
	p.DeniedSchemes[strings.ToLower(scheme)] = true
}

func (p *StepPolicy) DenyTarget(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	p.DeniedTargets = append(p.DeniedTargets, re)
	return nil
}

// Evaluate screens the incoming step of a delta. Remove deltas carry no
// step content and pass through.
func (p *StepPolicy) Evaluate(d steps.Delta) Result {
	if d.Step == nil {
		return Result{Effect: EffectAllow, Reason: "no step content to screen"}
	}

	if d.Step.Kind == steps.KindNavigate {
		u, err := url.Parse(strings.TrimSpace(d.Step.Value))
		if err != nil {
			return Result{Effect: EffectDeny, Reason: fmt.Sprintf("unparseable navigate URL %q", d.Step.Value)}
		}
		if p.DeniedSchemes[strings.ToLower(u.Scheme)] {
			return Result{Effect: EffectDeny, Reason: fmt.Sprintf("navigate scheme %q is restricted by policy", u.Scheme)}
		}
	}

	for _, re := range p.DeniedTargets {
		if re.MatchString(d.Step.Target) {
			return Result{Effect: EffectDeny, Reason: fmt.Sprintf("target matches restricted pattern: %s", re.String())}
		}
	}

	return Result{Effect: EffectAllow, Reason: "approved by default policy"}
}

var artifactName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidArtifactName reports whether a save name is safe to embed in a
// file path.
func ValidArtifactName(name string) bool {
	return artifactName.MatchString(name)
}
