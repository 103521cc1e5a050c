package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBeginAndGetEpisode(t *testing.T) {
	s := tempDB(t)

	rec, err := s.BeginEpisode(2, 42)
	if err != nil {
		t.Fatalf("BeginEpisode: %v", err)
	}
	if rec.EpisodeID == "" {
		t.Fatal("expected non-empty episode ID")
	}

	got, err := s.GetEpisode(rec.EpisodeID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if got.Worker != 2 || got.Seed != 42 {
		t.Fatalf("unexpected episode %+v", got)
	}
	if got.Finished() {
		t.Fatal("new episode should be running")
	}
}

func TestFinishEpisode(t *testing.T) {
	s := tempDB(t)
	rec, _ := s.BeginEpisode(0, 1)

	sum := EpisodeSummary{Steps: 12, TotalReward: -1.5, Violations: 1, Overrides: 2, Mismatches: 0, Outcome: "goal"}
	if err := s.FinishEpisode(rec.EpisodeID, sum); err != nil {
		t.Fatalf("FinishEpisode: %v", err)
	}

	got, _ := s.GetEpisode(rec.EpisodeID)
	if !got.Finished() {
		t.Fatal("expected finished episode")
	}
	if got.Steps != 12 || got.TotalReward != -1.5 || got.Overrides != 2 || got.Outcome != "goal" {
		t.Fatalf("unexpected totals %+v", got)
	}
}

func TestFinishUnknownEpisode(t *testing.T) {
	s := tempDB(t)
	err := s.FinishEpisode("nope", EpisodeSummary{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetEpisodeNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetEpisode("nonexistent-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordAndListSteps(t *testing.T) {
	s := tempDB(t)
	rec, _ := s.BeginEpisode(0, 1)

	steps := []StepRecord{
		{EpisodeID: rec.EpisodeID, Step: 1, Proposed: "forward", Applied: "forward", Reward: -0.01},
		{EpisodeID: rec.EpisodeID, Step: 2, Proposed: "forward", Applied: "wait", Reward: -1.01, Tag: "saved",
			MonitorsJSON: `{"water":{"state_label":"violation"}}`},
		{EpisodeID: rec.EpisodeID, Step: 3, Proposed: "left", Reward: -1, Done: true, Tag: "violation"},
	}
	for _, st := range steps {
		if err := s.RecordStep(st); err != nil {
			t.Fatalf("RecordStep: %v", err)
		}
	}

	got, err := s.Steps(rec.EpisodeID)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(got))
	}
	if got[1].Tag != "saved" || got[1].Applied != "wait" || got[1].MonitorsJSON == "" {
		t.Fatalf("unexpected step 2: %+v", got[1])
	}
	if !got[2].Done || got[2].Applied != "" {
		t.Fatalf("unexpected step 3: %+v", got[2])
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
}

func TestRecordStepUnknownEpisode(t *testing.T) {
	s := tempDB(t)
	err := s.RecordStep(StepRecord{EpisodeID: "missing", Step: 1, Proposed: "wait"})
	if err == nil {
		t.Fatal("expected foreign key failure")
	}
}

func TestListEpisodes(t *testing.T) {
	s := tempDB(t)
	for i := 0; i < 5; i++ {
		if _, err := s.BeginEpisode(i, int64(i)); err != nil {
			t.Fatalf("BeginEpisode: %v", err)
		}
	}

	got, err := s.ListEpisodes(3)
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(got))
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "missing-dir", "x", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestNewStore_CorruptDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database at all, just junk bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewStore(path); err == nil {
		t.Fatal("expected error for corrupt database")
	}
}

func TestOperationsOnClosedDB(t *testing.T) {
	s := tempDB(t)
	s.Close()

	if _, err := s.BeginEpisode(0, 0); err == nil {
		t.Fatal("BeginEpisode should fail on closed db")
	}
	if err := s.RecordStep(StepRecord{EpisodeID: "x", Proposed: "wait"}); err == nil {
		t.Fatal("RecordStep should fail on closed db")
	}
	if _, err := s.ListEpisodes(1); err == nil {
		t.Fatal("ListEpisodes should fail on closed db")
	}
	if _, err := s.Steps("x"); err == nil {
		t.Fatal("Steps should fail on closed db")
	}
	if s.DB() == nil {
		t.Fatal("DB accessor should still return the handle")
	}
}
