package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates the process-wide zerolog logger. Format is "json" or
// "console"; level follows zerolog numeric levels (0 = debug). When sampled
// is true, repetitive logs are sampled 1-in-5.
func New(level int, format string, sampled bool) zerolog.Logger {
	var out io.Writer = os.Stdout
	if format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	log := zerolog.New(out).
		Level(zerolog.Level(level)).
		With().
		Timestamp().
		Logger()

	if sampled {
		log = log.Sample(&zerolog.BasicSampler{N: 5})
	}
	return log
}

// Component returns a child logger tagged with a component name. Every
// subsystem derives its logger through this so log lines are filterable.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
