package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the output encoding of log lines.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, FormatJSON).Level(zerolog.InfoLevel)
)

func newLogger(w io.Writer, format Format) zerolog.Logger {
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Setup replaces the process logger. Unknown levels fall back to info.
func Setup(w io.Writer, format Format, level Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, format).Level(parseLevel(level))
}

// SetOutput redirects log lines to w, keeping the current level.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, FormatJSON).Level(logger.GetLevel())
}

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(parseLevel(l))
}

func parseLevel(l Level) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(string(l)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns the underlying zerolog logger, for libraries that want one.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	l := Logger()
	withKVs(l.Debug(), kv).Msg(msg)
}

func Info(msg string, kv ...any) {
	l := Logger()
	withKVs(l.Info(), kv).Msg(msg)
}

func Warn(msg string, kv ...any) {
	l := Logger()
	withKVs(l.Warn(), kv).Msg(msg)
}

func Error(msg string, err error, kv ...any) {
	l := Logger()
	withKVs(l.Error().Err(err), kv).Msg(msg)
}

// withKVs attaches key/value pairs to ev. Non-string keys are skipped and an
// odd trailing value is ignored.
func withKVs(ev *zerolog.Event, kv []any) *zerolog.Event {
	if ev == nil {
		return ev
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Time:
			ev = ev.Time(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	return ev
}
