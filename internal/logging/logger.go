// Package logging builds the service logger: logrus with optional
// lumberjack file rotation, gin request logging, and an audit sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05"

// Config controls level, format and file rotation.
type Config struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// Logger wraps logrus with a set of fixed fields.
type Logger struct {
	*logrus.Logger
	fields logrus.Fields
}

// New creates a logger writing to stdout and, when cfg.File is set, to a
// rotated file as well.
func New(cfg Config) *Logger {
	return newWithOutput(cfg, os.Stdout)
}

func newWithOutput(cfg Config, stdout io.Writer) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(stdout)

	l := &Logger{Logger: log, fields: logrus.Fields{}}
	l.SetFormat(cfg.Format)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			fmt.Fprintf(stdout, "failed to create log directory: %v\n", err)
			return l
		}
		fileLogger := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSize, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAge, 28),
			Compress:   cfg.Compress,
		}
		log.SetOutput(io.MultiWriter(stdout, fileLogger))
	}

	return l
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SetFormat switches between the json and text formatters.
func (l *Logger) SetFormat(format string) {
	switch format {
	case "json":
		l.Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	default:
		l.Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}
}

// WithField returns a logger that adds key to every entry.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.WithFields(map[string]any{key: value})
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{Logger: l.Logger, fields: merged}
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// Entry returns a logrus entry carrying the logger's fields.
func (l *Logger) Entry() *logrus.Entry {
	return l.Logger.WithFields(l.fields)
}

func (l *Logger) Debugf(format string, args ...any) { l.Entry().Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.Entry().Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Entry().Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.Entry().Errorf(format, args...) }
