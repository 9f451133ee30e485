// Package logging wraps logrus to satisfy ensemble.Logger, matching
// the corpus's habit of keeping a thin struct around the third-party
// logger rather than depending on logrus directly from call sites.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps *logrus.Logger and satisfies ensemble.Logger.
type Logger struct {
	*logrus.Logger
}

// Config selects level and format; it is populated by internal/config
// from environment or file settings.
type Config struct {
	Level  string
	Format string
}

// New builds a Logger from cfg, defaulting to info/text on an
// unrecognized level or format rather than failing construction.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	l.SetOutput(os.Stdout)

	return &Logger{Logger: l}
}

// Debugf satisfies ensemble.Logger.
func (l *Logger) Debugf(format string, args ...any) { l.Logger.Debugf(format, args...) }

// Infof satisfies ensemble.Logger.
func (l *Logger) Infof(format string, args ...any) { l.Logger.Infof(format, args...) }

// Warnf satisfies ensemble.Logger.
func (l *Logger) Warnf(format string, args ...any) { l.Logger.Warnf(format, args...) }

// Errorf satisfies ensemble.Logger.
func (l *Logger) Errorf(format string, args ...any) { l.Logger.Errorf(format, args...) }

// WithField returns a child entry carrying one structured field, for
// call sites that want to attach a session or correlation id without
// baking it into the format string.
func (l *Logger) WithField(key string, value any) *logrus.Entry {
	return l.Logger.WithField(key, value)
}
