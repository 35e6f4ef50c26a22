package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/rolo/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("Error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(""))
}

func TestSetupLoggerExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	logger, err := SetupLogger(&config.LoggingConfig{File: "~/logs/rolo.log", Level: "info"})
	require.NoError(t, err)
	logger.Info("hello")

	_, err = os.Stat(filepath.Join(home, "logs", "rolo.log"))
	assert.NoError(t, err)
}

func TestNullLoggerIsDisabled(t *testing.T) {
	assert.False(t, NullLogger().Enabled(context.Background(), slog.LevelError))
}

func TestSetupLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rolo.log")

	logger, err := SetupLogger(&config.LoggingConfig{File: path, Level: "debug"})
	require.NoError(t, err)

	logger.Debug("refreshed session", "requestID", "abc")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "refreshed session", record["msg"])
	assert.Equal(t, "abc", record["requestID"])
}

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
