package connection

import (
	"context"
	"log/slog"
	"time"
)

// StatusUpdate describes one state transition.
type StatusUpdate struct {
	From    State
	To      State
	Attempt int // reconnect attempts at the time of the transition
	At      time.Time
}

// StatusReporter is notified on every state transition. It is the only
// place UI code couples to the manager.
type StatusReporter interface {
	ReportStatus(StatusUpdate)
}

// StatusReporterFunc adapts a function to StatusReporter.
type StatusReporterFunc func(StatusUpdate)

// ReportStatus calls f(u).
func (f StatusReporterFunc) ReportStatus(u StatusUpdate) { f(u) }

// NopReporter discards updates.
var NopReporter StatusReporter = StatusReporterFunc(func(StatusUpdate) {})

// LogReporter writes every transition to logger.
func LogReporter(logger *slog.Logger) StatusReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return StatusReporterFunc(func(u StatusUpdate) {
		level := slog.LevelInfo
		if u.To == StateError {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "channel status",
			"from", u.From.String(),
			"to", u.To.String(),
			"attempt", u.Attempt,
		)
	})
}

// MultiReporter fans an update out to every non-nil reporter in order.
func MultiReporter(reporters ...StatusReporter) StatusReporter {
	list := make([]StatusReporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			list = append(list, r)
		}
	}
	return StatusReporterFunc(func(u StatusUpdate) {
		for _, r := range list {
			r.ReportStatus(u)
		}
	})
}
