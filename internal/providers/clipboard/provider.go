// Package clipboard copies text through a primary writer with a fallback,
// and reports each outcome as a user notification.
package clipboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrCopyFailed is returned when neither writer accepted the text.
var ErrCopyFailed = errors.New("all copy methods failed")

// Writer places text somewhere the user can paste it from.
type Writer interface {
	Name() string
	Write(ctx context.Context, text string) error
}

// Messages are the notification texts for one kind of copy.
type Messages struct {
	Success  string
	Fallback string
	Failure  string
}

// Preset notification texts.
var (
	ReportMessages = Messages{
		Success:  "Results copied to clipboard!",
		Fallback: "Results copied to clipboard!",
		Failure:  "Failed to copy results",
	}
	ElementMessages = Messages{
		Success:  "📖 Element bible copied to clipboard!",
		Fallback: "📖 Element bible copied (fallback method)!",
		Failure:  "❌ All copy methods failed",
	}
	SelectorMessages = Messages{
		Success:  "🎯 Element selectors copied to clipboard!",
		Fallback: "🎯 Element selectors copied to clipboard!",
		Failure:  "❌ Failed to copy selectors",
	}
)

// Result describes a successful copy.
type Result struct {
	Writer       string       `json:"writer"`
	Fallback     bool         `json:"fallback"`
	Notification Notification `json:"notification"`
}

// Copier tries the primary writer, then the fallback.
type Copier struct {
	primary  Writer
	fallback Writer
	notifier *Notifier
	logger   *zap.Logger
}

// NewCopier creates a copier. Either writer may be nil.
func NewCopier(primary, fallback Writer, notifier *Notifier, logger *zap.Logger) *Copier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewNotifier(logger, 0)
	}
	return &Copier{primary: primary, fallback: fallback, notifier: notifier, logger: logger}
}

// Notifier returns the notifier outcomes are reported to.
func (c *Copier) Notifier() *Notifier { return c.notifier }

// Copy writes text and notifies the outcome. It fails only when every
// configured writer failed.
func (c *Copier) Copy(ctx context.Context, text string, msgs Messages) (Result, error) {
	var errs []error
	for i, w := range []Writer{c.primary, c.fallback} {
		if w == nil {
			continue
		}
		if err := w.Write(ctx, text); err != nil {
			c.logger.Warn("clipboard write failed", zap.String("writer", w.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
			continue
		}

		fallback := i == 1
		msg := msgs.Success
		if fallback {
			msg = msgs.Fallback
		}
		n := c.notifier.Notify(LevelSuccess, msg)
		return Result{Writer: w.Name(), Fallback: fallback, Notification: n}, nil
	}

	c.notifier.Notify(LevelDanger, msgs.Failure)
	if len(errs) == 0 {
		return Result{}, fmt.Errorf("%w: no writer configured", ErrCopyFailed)
	}
	return Result{}, fmt.Errorf("%w: %w", ErrCopyFailed, errors.Join(errs...))
}
