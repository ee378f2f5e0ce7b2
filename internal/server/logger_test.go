// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestLogHandler_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(newLogHandler(buf, "warn", "json"))

	logger.Info("hidden")
	logger.Warn("login_failed", "reason", "invalid_password")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "login_failed", entry["msg"])
	assert.Equal(t, "invalid_password", entry["reason"])
}

func TestLogHandler_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(newLogHandler(buf, "debug", "text"))

	logger.Debug("password_reset_requested", "user_id", 7)

	assert.Contains(t, buf.String(), "password_reset_requested")
	assert.Contains(t, buf.String(), "user_id")
}
