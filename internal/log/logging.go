package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/mmcdole/rolo/internal/config"
)

// SetupLogger builds the application logger. With a log file configured,
// records are appended to it as JSON; otherwise colored text goes to stderr.
func SetupLogger(cfg *config.LoggingConfig) (*slog.Logger, error) {
	level := parseLogLevel(cfg.Level)
	if cfg.File == "" {
		return NewConsoleLogger(os.Stderr, level), nil
	}

	f, err := openLogFile(cfg.File)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})), nil
}

// openLogFile opens path for appending, expanding a leading ~ and creating
// missing directories
func openLogFile(path string) (*os.File, error) {
	if rest, ok := strings.CutPrefix(path, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, rest)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// NewConsoleLogger returns a human readable logger writing to w
func NewConsoleLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// parseLogLevel accepts slog level names in any case, plus "warning".
// Anything else is INFO.
func parseLogLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NullLogger discards everything; used by tests and as a fallback
func NullLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
