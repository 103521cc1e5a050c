package gate

import (
	"reflect"
	"testing"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/taxonomy"
)

func first(actions []core.Action) core.Action { return actions[0] }

func TestGatePassOnCleanVerdicts(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	verdicts := []Verdict{
		{Monitor: "water", State: taxonomy.SystemFinitelyControllable},
		{Monitor: "light", State: taxonomy.InfinitelyControllable},
	}

	decision := g.Evaluate(core.ActionForward, verdicts)

	if decision.Action != ActionPass {
		t.Fatalf("expected pass, got %s: %s", decision.Action, decision.Reason)
	}
	if decision.Vetoed {
		t.Fatal("should not be vetoed")
	}
	if decision.SafeAction != core.ActionForward {
		t.Fatalf("expected proposed action through, got %s", decision.SafeAction)
	}
	if decision.Severity != taxonomy.SystemFinitelyControllable.Severity() {
		t.Fatalf("expected severity of near state, got %d", decision.Severity)
	}
}

func TestGateOverrideOnUnsafeAction(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	verdicts := []Verdict{
		{Monitor: "water", UnsafeAction: core.ActionForward, State: taxonomy.SystemUrgentlyControllable},
	}

	decision := g.Evaluate(core.ActionForward, verdicts)

	if decision.Action != ActionOverride {
		t.Fatalf("expected override, got %s", decision.Action)
	}
	if !decision.Vetoed {
		t.Fatal("should be vetoed")
	}
	if decision.SafeAction != core.ActionWait {
		t.Fatalf("expected wait, got %s", decision.SafeAction)
	}
	if len(decision.VetoSignals) != 1 || decision.VetoSignals[0].Type != VetoViolation {
		t.Fatalf("expected one VetoViolation, got %+v", decision.VetoSignals)
	}
}

func TestGateCustomFallback(t *testing.T) {
	g := NewGate(GateConfig{FallbackAction: core.ActionLeft})
	decision := g.Evaluate(core.ActionForward, []Verdict{{Monitor: "a", UnsafeAction: core.ActionForward}})
	if decision.SafeAction != core.ActionLeft {
		t.Fatalf("expected left, got %s", decision.SafeAction)
	}
	if NewGate(GateConfig{}).Fallback() != core.ActionWait {
		t.Fatal("empty fallback defaults to wait")
	}
}

func TestGateMultipleVetoes(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	verdicts := []Verdict{
		{Monitor: "water", UnsafeAction: core.ActionForward},
		{Monitor: "lava", UnsafeAction: core.ActionForward},
		{Monitor: "light"},
	}

	decision := g.Evaluate(core.ActionForward, verdicts)

	if len(decision.VetoSignals) != 2 {
		t.Fatalf("expected 2 veto signals, got %d", len(decision.VetoSignals))
	}
}

func TestGateNoVerdicts(t *testing.T) {
	decision := NewGate(DefaultGateConfig()).Evaluate(core.ActionLeft, nil)
	if decision.Action != ActionPass || decision.Severity != -1 {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestIntersect(t *testing.T) {
	cases := []struct {
		name string
		sets [][]core.Action
		want []core.Action
	}{
		{"none", nil, nil},
		{"single", [][]core.Action{{core.ActionLeft, core.ActionRight}}, []core.Action{core.ActionLeft, core.ActionRight}},
		{"overlap", [][]core.Action{{core.ActionForward, core.ActionLeft}, {core.ActionLeft}}, []core.Action{core.ActionLeft}},
		{"disjoint", [][]core.Action{{core.ActionForward}, {core.ActionLeft}}, nil},
		{"duplicates", [][]core.Action{{core.ActionLeft, core.ActionLeft}, {core.ActionLeft}}, []core.Action{core.ActionLeft}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Intersect(tc.sets...); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateAvailableSubstitutes(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	sets := map[string][]core.Action{
		"a": {core.ActionForward, core.ActionLeft},
		"b": {core.ActionLeft},
	}

	decision := g.EvaluateAvailable(core.ActionForward, sets, first)

	if decision.Action != ActionOverride || decision.SafeAction != core.ActionLeft {
		t.Fatalf("expected override to left, got %+v", decision)
	}
	if len(decision.VetoSignals) != 1 || decision.VetoSignals[0].Monitor != "b" {
		t.Fatalf("expected veto from b, got %+v", decision.VetoSignals)
	}
}

func TestEvaluateAvailablePasses(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	sets := map[string][]core.Action{"a": {core.ActionForward}, "b": {core.ActionLeft}}

	decision := g.EvaluateAvailable(core.ActionForward, sets, first)
	if decision.Action != ActionPass {
		t.Fatalf("empty intersection should pass, got %s", decision.Action)
	}

	sets["b"] = append(sets["b"], core.ActionForward)
	decision = g.EvaluateAvailable(core.ActionForward, sets, first)
	if decision.Action != ActionPass || decision.SafeAction != core.ActionForward {
		t.Fatalf("available action should pass, got %+v", decision)
	}
}
