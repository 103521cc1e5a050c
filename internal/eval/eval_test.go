package eval

import (
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/safety-envelope/internal/store"
)

func finished(mod func(*store.EpisodeRecord)) store.EpisodeRecord {
	ep := store.EpisodeRecord{
		EpisodeID: "ep-1",
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Steps:     20,
		Outcome:   "goal",
	}
	if mod != nil {
		mod(&ep)
	}
	return ep
}

func TestEvalPassesCleanEpisode(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run(finished(func(ep *store.EpisodeRecord) { ep.Overrides = 7 }))

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	for _, m := range result.Metrics {
		if m.Name == "overrides" {
			t.Fatal("disabled override check should not report a metric")
		}
	}
}

func TestEvalFailsOnViolation(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run(finished(func(ep *store.EpisodeRecord) { ep.Violations = 1 }))

	if result.Passed {
		t.Fatal("expected fail on violation")
	}
	if !strings.Contains(result.Reason, "violations") {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestEvalCountsMultipleFailures(t *testing.T) {
	config := DefaultEvalConfig()
	config.MaxMismatches = 0
	h := NewEvalHarness(config)

	result := h.Run(finished(func(ep *store.EpisodeRecord) {
		ep.Violations = 2
		ep.Mismatches = 1
		ep.TotalReward = -5
	}))

	if result.Passed {
		t.Fatal("expected fail")
	}
	if !strings.Contains(result.Reason, "3 checks") {
		t.Fatalf("expected 3 failed checks, got %q", result.Reason)
	}
}

func TestEvalDefaultToleratesMismatches(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run(finished(func(ep *store.EpisodeRecord) { ep.Mismatches = 4 }))

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
}

func TestEvalRequireGoal(t *testing.T) {
	config := DefaultEvalConfig()
	config.RequireGoal = true
	h := NewEvalHarness(config)

	if r := h.Run(finished(nil)); !r.Passed {
		t.Fatalf("goal episode should pass: %s", r.Reason)
	}
	if r := h.Run(finished(func(ep *store.EpisodeRecord) { ep.Outcome = "end" })); r.Passed {
		t.Fatal("expected fail without goal")
	}
}

func TestEvalUnfinishedEpisodeFails(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run(store.EpisodeRecord{EpisodeID: "running"})

	if result.Passed || result.EpisodeID != "running" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSummarize(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	rep := h.Summarize([]store.EpisodeRecord{
		finished(nil),
		finished(func(ep *store.EpisodeRecord) { ep.EpisodeID = "bad"; ep.Violations = 1 }),
	})

	if rep.Episodes != 2 || rep.Passed != 1 || len(rep.Failed) != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if rep.Failed[0].EpisodeID != "bad" {
		t.Fatalf("wrong failure %q", rep.Failed[0].EpisodeID)
	}
	if rep.PassRate() != 0.5 {
		t.Fatalf("pass rate %v", rep.PassRate())
	}
	if (Report{}).PassRate() != 1 {
		t.Fatal("empty report should pass")
	}
}
