// Package logging builds the slog logger shared by all components.
// There is no package-level default: every component receives its
// logger explicitly.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// LevelTrace sits below debug; it is used for wire-level request
// logging.
const LevelTrace = slog.LevelDebug - 4

// Formats for New.
const (
	FormatShort = "short" // message-oriented terminal output, no timestamps
	FormatLog   = "log"   // timestamped key=value lines
)

// New creates a logger for the given verbosity: 0 info, 1 debug,
// 2 and above trace.
func New(w io.Writer, verbosity int, format string) *slog.Logger {
	var level slog.Level
	switch {
	case verbosity <= 0:
		level = slog.LevelInfo
	case verbosity == 1:
		level = slog.LevelDebug
	default:
		level = LevelTrace
	}

	if format == FormatLog {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.LevelKey {
					a.Value = slog.StringValue(levelName(a.Value.Any().(slog.Level)))
				}
				return a
			},
		}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func levelName(l slog.Level) string {
	if l <= LevelTrace {
		return "trace"
	}
	return strings.ToLower(l.String())
}
