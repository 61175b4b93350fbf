// Package logging builds the logrus logger shared by the binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level  string // logrus level name, default info
	Format string // "json" or "text", default text
	// Output is "stdout", "stderr" or a file path. Files rotate at 100 MB.
	Output string
	MaxAge int // days to keep rotated files, 0 keeps all
}

// New creates a logger from opts.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		lvl, err := logrus.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = lvl
	}
	logger.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	logger.SetOutput(output(opts))
	return logger, nil
}

func output(opts Options) io.Writer {
	switch opts.Output {
	case "", "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	default:
		return &lumberjack.Logger{
			Filename: opts.Output,
			MaxSize:  100,
			MaxAge:   opts.MaxAge,
			Compress: true,
		}
	}
}
