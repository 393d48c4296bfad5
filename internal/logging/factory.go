package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Supported LogFormat values.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatZerolog = "zerolog"
)

// Options select the logger implementation and its sink.
type Options struct {
	Format string
	// File, when set, receives the log through a size-rotated writer
	// instead of stdout.
	File  string
	Debug bool
}

// New builds a Logger for the given options. Unknown formats fall back to JSON.
func New(o Options) Logger {
	w := writer(o.File)

	level := slog.LevelInfo
	if o.Debug {
		level = slog.LevelDebug
	}

	switch o.Format {
	case FormatZerolog:
		zl := zerolog.New(w).With().Timestamp().Logger()
		if o.Debug {
			zl = zl.Level(zerolog.DebugLevel)
		} else {
			zl = zl.Level(zerolog.InfoLevel)
		}
		return NewZerologLogger(zl)
	case FormatText:
		return NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	default:
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
	}
}

func writer(file string) io.Writer {
	if file == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
}
