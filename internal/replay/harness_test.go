package replay

import (
	"errors"
	"strings"
	"testing"

	"github.com/danielpatrickdp/safety-envelope/internal/core"
	"github.com/danielpatrickdp/safety-envelope/internal/envelope"
	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

func ptr[T any](v T) *T { return &v }

func waterFixture(steps ...FixtureStep) *Fixture {
	return &Fixture{
		Config: FixtureConfig{
			FallbackAction: "wait",
			Rewards:        FixtureRewards{Step: -0.01, Goal: 1, Death: -5},
		},
		Monitors: []monitor.Spec{{
			Type: monitor.KindAvoid,
			Name: "water",
			Rewards: monitor.RewardSpec{
				Violated:  ptr(-1.0),
				Near:      ptr(-0.1),
				Immediate: ptr(-0.5),
			},
		}},
		Steps: steps,
	}
}

func TestReplay_OverrideMatchesExpectation(t *testing.T) {
	f := waterFixture(FixtureStep{
		Facts:  map[string]bool{"water-immediate": true},
		Action: "forward",
		Expect: &FixtureExpect{Tag: ptr("saved"), Applied: "wait"},
	})

	results, err := Replay(f, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !results[0].Passed() {
		t.Fatalf("unexpected diffs: %v", results[0].Diffs)
	}
	if results[0].Labels["water"] != monitor.LabelViolation {
		t.Errorf("expected violation label, got %s", results[0].Labels["water"])
	}
}

func TestReplay_ReportsDrift(t *testing.T) {
	f := waterFixture(FixtureStep{
		Facts:  map[string]bool{"water-immediate": true},
		Action: "forward",
		Expect: &FixtureExpect{
			Tag:     ptr(""),
			Applied: "forward",
			Labels:  map[string]string{"water": "monitoring"},
		},
	})

	results, err := Replay(f, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results[0].Diffs) != 3 {
		t.Fatalf("expected 3 diffs, got %v", results[0].Diffs)
	}
	report := Report(results)
	if !strings.Contains(report, "applied: want forward, got wait") {
		t.Errorf("report missing applied diff:\n%s", report)
	}
	if Summarize(results).Failures != 1 {
		t.Error("expected one failing step")
	}
}

func TestReplay_ResetOnViolation(t *testing.T) {
	f := waterFixture(
		FixtureStep{Facts: map[string]bool{"water-immediate": true}, Action: "forward",
			Expect: &FixtureExpect{Tag: ptr(string(envelope.TagViolation)), Done: ptr(true)}},
		FixtureStep{Facts: map[string]bool{}, Action: "forward",
			Expect: &FixtureExpect{Tag: ptr(""), Applied: "forward"}},
	)
	f.Config.ResetOnViolation = true

	results, err := Replay(f, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if report := Report(results); report != "" {
		t.Fatalf("unexpected drift:\n%s", report)
	}
	if results[0].Applied != "" {
		t.Errorf("unsafe action must not be applied, got %s", results[0].Applied)
	}
	if Summarize(results).Violations != 1 {
		t.Error("expected one violation")
	}
}

func TestReplay_NegatedFacts(t *testing.T) {
	f := &Fixture{
		Config: FixtureConfig{FallbackAction: "wait"},
		Monitors: []monitor.Spec{{
			Type:       monitor.KindUniversality,
			Name:       "dark",
			Conditions: monitor.Conditions{First: "not:light-on"},
			Rewards:    monitor.RewardSpec{Violated: ptr(-1.0)},
		}},
		Steps: []FixtureStep{
			{Facts: map[string]bool{}, Action: "wait"},
			{Facts: map[string]bool{"light-on": true}, Action: "wait"},
		},
	}

	results, err := Replay(f, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[1].Labels["dark"] == monitor.LabelMonitoring {
		t.Errorf("expected the light to break universality, got %s", results[1].Labels["dark"])
	}
}

func TestReplay_BadInputs(t *testing.T) {
	if _, err := Replay(&Fixture{}, nil); !errors.Is(err, ErrBadFixture) {
		t.Errorf("empty fixture: expected ErrBadFixture, got %v", err)
	}

	f := waterFixture(FixtureStep{Action: "wait"})
	f.Layout = []string{"###"}
	if _, err := Replay(f, nil); !errors.Is(err, ErrBadFixture) {
		t.Errorf("bad layout: expected ErrBadFixture, got %v", err)
	}

	f = waterFixture(FixtureStep{Action: "wait"})
	f.Monitors[0].Type = "sometimes"
	if _, err := Replay(f, nil); err == nil {
		t.Error("expected error for unknown monitor kind")
	}
}

func TestScriptDoesNotRewind(t *testing.T) {
	s := newScript([]FixtureStep{
		{Facts: map[string]bool{"a": true}},
		{Facts: map[string]bool{"b": true}, Goal: true},
	}, -0.01)

	obs, reward, _, _ := s.Step(core.ActionWait)
	if !obs.(Facts)["b"] || reward != -0.01 {
		t.Fatalf("unexpected step result %v %v", obs, reward)
	}
	if !s.AtGoal() {
		t.Error("expected goal after the first step")
	}
	reset, _ := s.Reset()
	if !reset.(Facts)["b"] {
		t.Error("reset must keep the script position")
	}
	s.Step(core.ActionWait)
	s.Step(core.ActionWait)
	if !s.Observe().(Facts)["b"] {
		t.Error("script should hold its last facts")
	}
}
