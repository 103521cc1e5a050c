package logging

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danielpatrickdp/safety-envelope/internal/monitor"
)

// #region log-notification
// LogNotification writes one entry to the notification_log table.
func LogNotification(db *sql.DB, entry NotificationEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var reward any
	if entry.Label == string(monitor.LabelShaping) || entry.Label == string(monitor.LabelViolation) {
		reward = entry.ShapedReward
	}

	_, err := db.Exec(
		`INSERT INTO notification_log (episode_id, step, monitor, kind, label, state, shaped_reward, unsafe_action, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.EpisodeID),
		entry.Step,
		entry.Monitor,
		entry.Kind,
		entry.Label,
		nullIfEmpty(entry.State),
		reward,
		nullIfEmpty(entry.UnsafeAction),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log notification: %w", err)
	}
	return nil
}

// #endregion log-notification

// #region sink
// Sink turns monitor notifications into notification_log rows tagged with the
// current episode and step. Write failures are logged, never returned, since
// notifiers run inside a monitor check.
type Sink struct {
	db     *sql.DB
	logger *slog.Logger

	mu        sync.Mutex
	episodeID string
	step      int
	failures  int
}

// NewSink creates a sink over db. logger may be nil.
func NewSink(db *sql.DB, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{db: db, logger: logger}
}

// SetEpisode starts tagging rows with id, from step zero.
func (s *Sink) SetEpisode(id string) {
	s.mu.Lock()
	s.episodeID, s.step = id, 0
	s.mu.Unlock()
}

// SetStep sets the step number for the notifications that follow.
func (s *Sink) SetStep(step int) {
	s.mu.Lock()
	s.step = step
	s.mu.Unlock()
}

// Failures counts rows that could not be written.
func (s *Sink) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Notify implements monitor.Notifier.
func (s *Sink) Notify(n monitor.Notification) {
	s.mu.Lock()
	entry := NotificationEntry{
		EpisodeID:    s.episodeID,
		Step:         s.step,
		Monitor:      n.Monitor,
		Kind:         string(n.Kind),
		Label:        string(n.Label),
		State:        string(n.State),
		ShapedReward: n.ShapedReward,
		UnsafeAction: string(n.UnsafeAction),
	}
	s.mu.Unlock()

	if err := LogNotification(s.db, entry); err != nil {
		s.mu.Lock()
		s.failures++
		s.mu.Unlock()
		s.logger.Error("notification log write failed", "monitor", n.Monitor, "error", err)
	}
}

// #endregion sink

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
