package logging

import (
	"io"
	"time"
)

// #region config
// Config selects the slog handler. Level is debug|info|warn|error and Format
// is text|json. Writer defaults to stderr.
type Config struct {
	Level  string    `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string    `yaml:"format" json:"format" validate:"omitempty,oneof=text json"`
	Writer io.Writer `yaml:"-" json:"-"`
}

// #endregion config

// #region notification-entry
// NotificationEntry is a single row in the notification_log table.
type NotificationEntry struct {
	EpisodeID    string
	Step         int
	Monitor      string
	Kind         string
	Label        string // "monitoring" | "shaping" | "violation" | "mismatch"
	State        string
	ShapedReward float64
	UnsafeAction string
	CreatedAt    time.Time
}

// #endregion notification-entry
