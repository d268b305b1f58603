// Package logging configures the diagnostic logger. User-facing progress goes
// through the console package; this logger carries debug detail to stderr.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// New returns a logger writing human-readable lines to w. Only warnings and
// errors are shown unless debug is set.
func New(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
	}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

// WithSession tags every event with the run's session id.
func WithSession(l zerolog.Logger, session string) zerolog.Logger {
	return l.With().Str("session", session).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
