package clipboard

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagelens/internal/shared/id"
)

// Level is a notification severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// DefaultHistory is the number of notifications kept.
const DefaultHistory = 50

// Notification is a user-facing message.
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier logs notifications and keeps the most recent ones.
type Notifier struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	history []Notification
	limit   int
}

// NewNotifier creates a notifier keeping limit entries (DefaultHistory
// when limit <= 0).
func NewNotifier(logger *zap.Logger, limit int) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Notifier{logger: logger, limit: limit}
}

// Notify records and logs a notification.
func (n *Notifier) Notify(level Level, message string) Notification {
	note := Notification{
		ID:      id.NewNotificationID().String(),
		Level:   level,
		Message: message,
		Time:    time.Now(),
	}

	fields := []zap.Field{zap.String("id", note.ID), zap.String("level", string(level))}
	switch level {
	case LevelDanger:
		n.logger.Error(message, fields...)
	case LevelWarning:
		n.logger.Warn(message, fields...)
	default:
		n.logger.Info(message, fields...)
	}

	n.mu.Lock()
	n.history = append(n.history, note)
	if over := len(n.history) - n.limit; over > 0 {
		n.history = append([]Notification(nil), n.history[over:]...)
	}
	n.mu.Unlock()
	return note
}

// History returns up to limit notifications, newest first. limit <= 0
// returns all.
func (n *Notifier) History(limit int) []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if limit <= 0 || limit > len(n.history) {
		limit = len(n.history)
	}
	out := make([]Notification, 0, limit)
	for i := len(n.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, n.history[i])
	}
	return out
}
