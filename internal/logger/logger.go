// Package logger builds the slog logger used by the CLI: colored tint output
// on terminals, logfmt-style text otherwise.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Off disables all logging.
const Off = slog.Level(99)

// ParseLevel maps a level name to a slog level. "off" and "none" disable
// logging.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "err", "error":
		return slog.LevelError, nil
	case "off", "none":
		return Off, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// Options configures New.
type Options struct {
	Level slog.Leveler
	// Terminal forces the tint handler on or off; nil detects it from w.
	Terminal *bool
	NoColor  bool
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	level := opts.Level
	if level == nil {
		level = slog.LevelWarn
	}

	term := IsTerminal(w)
	if opts.Terminal != nil {
		term = *opts.Terminal
	}
	if term {
		return slog.New(newTerminalHandler(w, level, opts.NoColor))
	}
	return slog.New(newTextHandler(w, level))
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newTextHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				return slog.String(a.Key, strings.ToLower(a.Value.String()))
			}
			return a
		},
	})
}

func newTerminalHandler(w io.Writer, level slog.Leveler, noColor bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		NoColor: noColor || runtime.GOOS == "windows",
		Level:   level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
}
