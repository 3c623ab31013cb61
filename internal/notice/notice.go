// Package notice delivers user-facing messages about attachment operations.
package notice

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Kinds of notices emitted by the engine.
const (
	KindMoved                = "moved"
	KindReductionFailure     = "reduction_failure"
	KindDestinationCollision = "destination_collision"
	KindStorageFailure       = "storage_failure"
	KindStaleLinkWarning     = "stale_link_warning"
	KindNoActiveFile         = "no_active_file"
)

// Notice is one user-facing message.
type Notice struct {
	Level   Level     `json:"level"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier receives notices. Implementations must not block for long.
type Notifier interface {
	Notify(n Notice)
}

// New builds a notice stamped with the current time.
func New(level Level, kind, msg string) Notice {
	return Notice{Level: level, Kind: kind, Message: msg, Time: time.Now()}
}

// Log writes notices to a slog.Logger.
type Log struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l Log) Notify(n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lvl := slog.LevelInfo
	switch n.Level {
	case LevelWarning:
		lvl = slog.LevelWarn
	case LevelError:
		lvl = slog.LevelError
	}
	logger.Log(context.Background(), lvl, "notice: "+n.Kind, slog.String("message", n.Message))
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Kinds returns the kinds of the recorded notices in order.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Kind
	}
	return out
}
