package gate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
)

// #region gate
// Gate decides whether a proposed action reaches the environment.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	if config.FallbackAction == "" {
		config.FallbackAction = core.ActionWait
	}
	return &Gate{config: config}
}

// Fallback returns the action substituted on override.
func (g *Gate) Fallback() core.Action {
	return g.config.FallbackAction
}

// Evaluate collects unsafe actions from the verdicts. Any unsafe action vetoes
// the step and the fallback action is substituted; otherwise proposed passes.
func (g *Gate) Evaluate(proposed core.Action, verdicts []Verdict) GateDecision {
	var vetoes []VetoSignal
	severity := -1

	for _, v := range verdicts {
		if s := v.State.Severity(); s > severity {
			severity = s
		}
		if v.UnsafeAction == "" {
			continue
		}
		vetoes = append(vetoes, VetoSignal{
			Type:    VetoViolation,
			Monitor: v.Monitor,
			Reason:  fmt.Sprintf("%s flagged %s as unsafe", v.Monitor, v.UnsafeAction),
		})
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      ActionOverride,
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
			SafeAction:  g.config.FallbackAction,
			Severity:    severity,
		}
	}

	return GateDecision{
		Action:     ActionPass,
		Reason:     "no monitor flagged an unsafe action",
		SafeAction: proposed,
		Severity:   severity,
	}
}

// EvaluateAvailable checks proposed against the intersection of controller
// safe sets. When proposed is outside it, pick chooses a replacement from the
// intersection. An empty intersection leaves the step unmediated.
func (g *Gate) EvaluateAvailable(proposed core.Action, sets map[string][]core.Action, pick func([]core.Action) core.Action) GateDecision {
	names := make([]string, 0, len(sets))
	for n := range sets {
		names = append(names, n)
	}
	slices.Sort(names)

	ordered := make([][]core.Action, 0, len(names))
	for _, n := range names {
		ordered = append(ordered, sets[n])
	}
	common := Intersect(ordered...)
	if len(common) == 0 || slices.Contains(common, proposed) {
		reason := "proposed action available to every controller"
		if len(common) == 0 {
			reason = "no common safe action, step unmediated"
		}
		return GateDecision{Action: ActionPass, Reason: reason, SafeAction: proposed, Severity: -1}
	}

	var vetoes []VetoSignal
	for _, n := range names {
		if !slices.Contains(sets[n], proposed) {
			vetoes = append(vetoes, VetoSignal{
				Type:    VetoUnavailable,
				Monitor: n,
				Reason:  fmt.Sprintf("%s does not permit %s", n, proposed),
			})
		}
	}
	safe := pick(common)
	return GateDecision{
		Action:      ActionOverride,
		Reason:      fmt.Sprintf("hard veto: %s; substituted %s from [%s]", vetoes[0].Reason, safe, join(common)),
		Vetoed:      true,
		VetoSignals: vetoes,
		SafeAction:  safe,
		Severity:    -1,
	}
}

// #endregion gate

// #region helpers
// Intersect returns actions present in every set, in the order of the first.
// No sets yields nil.
func Intersect(sets ...[]core.Action) []core.Action {
	if len(sets) == 0 {
		return nil
	}
	var out []core.Action
	for _, a := range sets[0] {
		if slices.Contains(out, a) {
			continue
		}
		inAll := true
		for _, s := range sets[1:] {
			if !slices.Contains(s, a) {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, a)
		}
	}
	return out
}

func join(actions []core.Action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = string(a)
	}
	return strings.Join(parts, ",")
}

// #endregion helpers
