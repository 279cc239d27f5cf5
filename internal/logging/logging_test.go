package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestSetup_FileLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stacfan.log")
	cfg := Config{Level: "debug", FilePath: path, WriteToStderr: false}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("request_received", slog.String("path", "/stac/search"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "request_received")
	assert.Contains(t, string(data), "/stac/search")
}

func TestSetup_StderrOnlyWhenNoFile(t *testing.T) {
	logger, cleanup, err := Setup(DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, logger)
	cleanup()
}

func TestSetup_BadFilePathFails(t *testing.T) {
	cfg := Config{Level: "info", FilePath: filepath.Join(t.TempDir(), "missing", "x.log")}

	_, _, err := Setup(cfg)
	assert.Error(t, err)
}
