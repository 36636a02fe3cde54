// Package logging builds the tracker's slog logger. Its threshold follows the
// UartDebugMessage setting, which is only known after tracker.ini is read.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gnss-tracker/internal/settings"
)

type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New returns a text logger on w at the threshold for v. A nil w logs to
// stderr.
func New(w io.Writer, v settings.Verbosity) *Logger {
	if w == nil {
		w = os.Stderr
	}
	lv := new(slog.LevelVar)
	lv.Set(v.SlogLevel())
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})
	return &Logger{Logger: slog.New(h), level: lv}
}

// SetVerbosity changes the threshold of this logger and every logger derived
// from it.
func (l *Logger) SetVerbosity(v settings.Verbosity) {
	l.level.Set(v.SlogLevel())
}

func (l *Logger) Level() slog.Level { return l.level.Level() }
