package notify

import (
	"log/slog"
	"time"
)

// Notifier delivers short human-readable strings to a user. Delivery
// is best effort; callers are expected to ignore the error for
// non-critical messages.
type Notifier interface {
	Notify(userID string, message string) error
}

// Message is the wire shape pushed over a websocket session.
type Message struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// LogNotifier writes notifications to the log. It is the fallback when
// the user has no live session.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l *LogNotifier) Notify(userID, message string) error {
	l.Logger.Info("notification", "user_id", userID, "message", message)
	return nil
}
