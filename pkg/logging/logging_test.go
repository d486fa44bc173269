package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/sosmeet/pkg/logging"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, logging.ParseLevel(in), "level %q", in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("alarm dropped", "user", "alice")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "alarm dropped", rec["msg"])
	require.Equal(t, "alice", rec["user"])
}

func TestNewRejectsUnknown(t *testing.T) {
	_, err := logging.New(logging.Options{Level: "loud"})
	require.Error(t, err)
	_, err = logging.New(logging.Options{Format: "xml"})
	require.Error(t, err)
}
