// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Options configures the logger.
type Options struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text or json
	Output string `mapstructure:"output" yaml:"output"` // stderr, stdout or file
	File   string `mapstructure:"file" yaml:"file"`

	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// DefaultOptions logs info and above as text to stderr. The journal file
// keeps a week of history.
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		Format:     "text",
		Output:     "stderr",
		File:       "crashscan-journal.log",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
}

// New creates a logger from opts.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.Warnf("Invalid log level '%s', using 'info'", opts.Level)
	}
	logger.SetLevel(level)

	if err := setFormatter(logger, opts.Format); err != nil {
		return nil, err
	}
	if err := setOutput(logger, opts, level); err != nil {
		return nil, err
	}
	return logger, nil
}

func setFormatter(logger *logrus.Logger, format string) error {
	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}
	return nil
}

func setOutput(logger *logrus.Logger, opts Options, level logrus.Level) error {
	switch strings.ToLower(opts.Output) {
	case "stderr", "":
		logger.SetOutput(os.Stderr)
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "file":
		if opts.File == "" {
			return fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		journal := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		// debug also goes to the console
		if level >= logrus.DebugLevel {
			logger.SetOutput(io.MultiWriter(os.Stderr, journal))
		} else {
			logger.SetOutput(journal)
		}
	default:
		return fmt.Errorf("unsupported log output: %s", opts.Output)
	}
	return nil
}
