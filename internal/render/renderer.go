// Package render turns a step model into a complete chromedp test file.
// Rendering is pure and deterministic: the same model always produces
// byte-identical source text.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rahul/scout/internal/steps"
)

// TemplateVersion is stamped into every rendered file. Bump it whenever
// a fragment changes shape, so saved artifacts identify the template
// that produced them.
const TemplateVersion = "v1"

// RenderError reports a step that reached the renderer without a known
// template. Admission-time validation is supposed to make this
// unreachable; hitting it means a step bypassed validation.
type RenderError struct {
	Order int
	Kind  steps.Kind
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render: no template for kind %q at step %d", e.Kind, e.Order)
}

// Render produces the full test source for a model. The empty model
// renders a skeleton with no actions. Rendering fails closed: on any
// unknown kind no partial output is returned.
func Render(m steps.Model) (string, error) {
	list := m.Steps()

	var actions []string
	var asserts []string
	var textVars []string

	for _, s := range list {
		comment := fmt.Sprintf("\t\t// %d: %s", s.Order, s)
		switch s.Kind {
		case steps.KindNavigate:
			actions = append(actions, comment,
				fmt.Sprintf("\t\tchromedp.Navigate(%s),", strconv.Quote(s.Value)))
		case steps.KindClick:
			actions = append(actions, comment,
				fmt.Sprintf("\t\tchromedp.Click(%s, chromedp.ByQuery),", strconv.Quote(s.Target)))
		case steps.KindFill:
			actions = append(actions, comment,
				fmt.Sprintf("\t\tchromedp.SendKeys(%s, %s, chromedp.ByQuery),", strconv.Quote(s.Target), strconv.Quote(s.Value)))
		case steps.KindAssertVisible:
			actions = append(actions, comment,
				fmt.Sprintf("\t\tchromedp.WaitVisible(%s, chromedp.ByQuery),", strconv.Quote(s.Target)))
		case steps.KindScroll:
			actions = append(actions, comment,
				fmt.Sprintf("\t\tchromedp.ScrollIntoView(%s, chromedp.ByQuery),", strconv.Quote(s.Target)))
		case steps.KindWait:
			actions = append(actions, comment,
				fmt.Sprintf("\t\tchromedp.Sleep(%s),", sleepLiteral(s.Value)))
		case steps.KindAssertText:
			v := fmt.Sprintf("text%d", s.Order)
			textVars = append(textVars, v)
			actions = append(actions, comment,
				fmt.Sprintf("\t\tchromedp.Text(%s, &%s, chromedp.ByQuery),", strconv.Quote(s.Target), v))
			asserts = append(asserts,
				fmt.Sprintf("\tif !strings.Contains(%s, %s) {", v, strconv.Quote(s.Value)),
				fmt.Sprintf("\t\tt.Errorf(\"step %d: expected text %%q, got %%q\", %s, %s)", s.Order, strconv.Quote(s.Value), v),
				"\t}")
		default:
			return "", &RenderError{Order: s.Order, Kind: s.Kind}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by scout (template %s). DO NOT EDIT.\n", TemplateVersion)
	b.WriteString("package scenario\n\n")

	b.WriteString("import (\n")
	b.WriteString("\t\"context\"\n")
	if len(asserts) > 0 {
		b.WriteString("\t\"strings\"\n")
	}
	b.WriteString("\t\"testing\"\n")
	b.WriteString("\t\"time\"\n\n")
	b.WriteString("\t\"github.com/chromedp/chromedp\"\n")
	b.WriteString(")\n\n")

	b.WriteString("func TestScenario(t *testing.T) {\n")
	b.WriteString("\tctx, cancel := chromedp.NewContext(context.Background())\n")
	b.WriteString("\tdefer cancel()\n\n")
	b.WriteString("\tctx, cancel = context.WithTimeout(ctx, 2*time.Minute)\n")
	b.WriteString("\tdefer cancel()\n\n")

	for _, v := range textVars {
		fmt.Fprintf(&b, "\tvar %s string\n", v)
	}
	if len(textVars) > 0 {
		b.WriteString("\n")
	}

	if len(actions) == 0 {
		b.WriteString("\t// no steps recorded yet\n")
		b.WriteString("\terr := chromedp.Run(ctx)\n")
	} else {
		b.WriteString("\terr := chromedp.Run(ctx,\n")
		b.WriteString(strings.Join(actions, "\n"))
		b.WriteString("\n\t)\n")
	}
	b.WriteString("\tif err != nil {\n")
	b.WriteString("\t\tt.Fatalf(\"scenario failed: %v\", err)\n")
	b.WriteString("\t}\n")

	if len(asserts) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(asserts, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// sleepLiteral renders a wait value as a Go duration expression.
// Accepts Go duration strings ("1500ms") or bare second counts ("2");
// anything else falls back to one second so rendering stays total.
func sleepLiteral(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "1 * time.Second"
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		if d%time.Second == 0 {
			return fmt.Sprintf("%d * time.Second", d/time.Second)
		}
		return fmt.Sprintf("%d * time.Millisecond", d/time.Millisecond)
	}
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return fmt.Sprintf("%d * time.Second", n)
	}
	return "1 * time.Second"
}
