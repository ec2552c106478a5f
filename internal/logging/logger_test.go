package logging

import (
	"os"
	"path/filepath"
	"testing"

	"fssim/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fssim.log")
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	logger.Named(string(CategoryVerify)).Info("tree compared", zap.String("user", "left"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"verify"`)
	assert.Contains(t, string(data), `"user":"left"`)
}

func TestCategoryFilter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := config.LoggingConfig{Categories: map[string]bool{"simulation": false}}
	logger := filterCategories(zap.New(core), cfg)

	logger.Named("simulation").Info("dropped")
	logger.Named("simulation").Named("step").Info("dropped too")
	logger.Named("verify").With(zap.Int("n", 1)).Info("kept")
	logger.Info("unnamed kept")

	var messages []string
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
	}
	assert.Equal(t, []string{"kept", "unnamed kept"}, messages)
}

func TestNamedDisabledIsNop(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := config.LoggingConfig{Categories: map[string]bool{"cli": false}}

	Named(zap.New(core), cfg, CategoryCLI).Info("hidden")
	Named(zap.New(core), cfg, CategoryBackend).Info("shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "backend", logs.All()[0].LoggerName)
}
