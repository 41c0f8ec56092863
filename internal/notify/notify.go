// Package notify delivers advisory notices: sync failures, persistent pull
// failures and the daily digest. Notices never block the caller's work.
package notify

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

type Level int

const (
	Info Level = iota
	Warning
)

func (l Level) String() string {
	if l == Warning {
		return "warning"
	}
	return "info"
}

// Notifier delivers one notice.
type Notifier interface {
	Notify(ctx context.Context, level Level, text string) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, level Level, text string) error

func (f Func) Notify(ctx context.Context, level Level, text string) error {
	return f(ctx, level, text)
}

// Log writes notices to the process log.
type Log struct{}

func (Log) Notify(_ context.Context, level Level, text string) error {
	entry := log.WithField("notice", level.String())
	if level == Warning {
		entry.Warn(text)
	} else {
		entry.Info(text)
	}
	return nil
}

// Multi fans a notice out to every sink. All sinks are attempted.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, level Level, text string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, level, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send delivers text through n and only logs a delivery failure.
func Send(ctx context.Context, n Notifier, level Level, text string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, level, text); err != nil {
		log.Warnf("notify: %v", err)
	}
}
