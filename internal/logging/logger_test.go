package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOptions_Fanout(t *testing.T) {
	var console, jsonOut bytes.Buffer
	logger := NewWithOptions(Options{Level: slog.LevelInfo, Console: &console, JSON: &jsonOut})

	logger.Info("batch applied", "error", errors.New("boom"))
	logger.Debug("hidden")

	assert.Contains(t, console.String(), "err=boom")
	assert.NotContains(t, console.String(), "hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(jsonOut.Bytes(), &rec))
	assert.Equal(t, "batch applied", rec["msg"])
	assert.Equal(t, "boom", rec["err"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}
