package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"homie2mqtt/internal/config"
)

type Log struct {
	*logrus.Entry
}

// NewLogger creates a logger writing to stdout.
func NewLogger(cfg config.LogConf) (*Log, error) {
	return New(cfg, os.Stdout)
}

// New creates a logger writing to w.
func New(cfg config.LogConf, w io.Writer) (*Log, error) {
	log := logrus.New()

	log.SetOutput(w)

	log.Formatter = &logrus.TextFormatter{
		TimestampFormat:  "2006-01-02 15:04:05.0000",
		DisableColors:    w != os.Stdout,
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger. Error in settings (level: %s): %w", cfg.Level, err)
	}
	log.SetLevel(level)
	log.Debug("set level: ", level)

	return &Log{Entry: log.WithFields(nil)}, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Log {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return &Log{Entry: log.WithFields(nil)}
}

// With will add the fields to the formatted log entry.
func (l *Log) With(fields Fields) *Log {
	return &Log{Entry: l.WithFields(logrus.Fields(fields))}
}

func (l *Log) GetLevel() string {
	return l.Logger.Level.String()
}

// Fields are a representation of formatted log fields.
type Fields map[string]interface{}

// Logger is the logging interface handed to components.
type Logger interface {
	// GetLevel returns the configured level.
	GetLevel() string
	With(fields Fields) *Log
}
