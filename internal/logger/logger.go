// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much is logged.
type Options struct {
	Env     string // "DEV" selects a human readable console writer
	Level   string // zerolog level name, defaults to info
	LogFile string // optional rotating log file
	Out     io.Writer
}

// New builds a logger from opts without touching the global logger.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Env == "DEV" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err == nil {
			out = io.MultiWriter(out, &lumberjack.Logger{
				Filename:   opts.LogFile,
				MaxSize:    100, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			})
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Setup installs the logger built from opts as the global zerolog logger.
func Setup(opts Options) zerolog.Logger {
	l := New(opts)
	log.Logger = l
	zerolog.DefaultContextLogger = &l
	return l
}
