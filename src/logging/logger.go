// Package logging provides the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	baseLogger *logrus.Logger
	initOnce   sync.Once
)

// Options configures the base logger. Empty fields fall back to the
// LOG_LEVEL and LOG_FORMAT environment variables.
type Options struct {
	Output io.Writer
	Level  string // trace, debug, info, warn, error
	Format string // text or json
}

// New builds a logger from options without touching the global one.
func New(opts Options) *logrus.Logger {
	l := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	format := opts.Format
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        "2006-01-02T15:04:05-07:00",
			PadLevelText:           true,
			DisableLevelTruncation: true,
		})
	}

	level := opts.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	return l
}

// Init configures the global logger once. Later calls return the same logger.
func Init(opts Options) *logrus.Logger {
	initOnce.Do(func() {
		baseLogger = New(opts)
	})
	return baseLogger
}

// L returns the global logger, initializing it from the environment if needed.
func L() *logrus.Logger {
	return Init(Options{})
}

// C returns a component-scoped entry on the global logger.
func C(component string) *logrus.Entry {
	return L().WithField("component", component)
}

// Discard returns an entry that drops everything. Useful as a default for
// collaborators constructed without a logger.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
