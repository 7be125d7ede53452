package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureAt(t *testing.T, level slog.Level, sourceLevels ...slog.Level) string {
	t.Helper()
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{AddSource: false})
	log := slog.New(NewConditionalSourceHandler(base, sourceLevels...))

	log.Log(context.Background(), level, "sweep removed idle session")
	return buf.String()
}

func TestConditionalSourceHandler_SourceOnlyAtConfiguredLevels(t *testing.T) {
	warnAndUp := []slog.Level{slog.LevelWarn, slog.LevelError}

	tests := []struct {
		name       string
		level      slog.Level
		levels     []slog.Level
		wantSource bool
	}{
		{name: "debug stays clean", level: slog.LevelDebug, levels: warnAndUp, wantSource: false},
		{name: "info stays clean", level: slog.LevelInfo, levels: warnAndUp, wantSource: false},
		{name: "warn gets source", level: slog.LevelWarn, levels: warnAndUp, wantSource: true},
		{name: "error gets source", level: slog.LevelError, levels: warnAndUp, wantSource: true},
		{name: "info gets source when opted in", level: slog.LevelInfo, levels: []slog.Level{slog.LevelInfo}, wantSource: true},
		{name: "nothing configured", level: slog.LevelError, levels: nil, wantSource: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureAt(t, tt.level, tt.levels...)
			if tt.wantSource {
				assert.Contains(t, out, "source=")
			} else {
				assert.NotContains(t, out, "source=")
			}
		})
	}
}

func TestConditionalSourceHandler_PreservesAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{AddSource: false})
	h := NewConditionalSourceHandler(base, slog.LevelError)

	log := slog.New(h).With("token_prefix", "3fA9").WithGroup("conn")
	log.Info("registered connection", "count", 2)

	out := buf.String()
	assert.Contains(t, out, "token_prefix=3fA9")
	assert.Contains(t, out, "count=2")
	assert.NotContains(t, out, "source=")
}

func TestConditionalSourceHandler_DelegatesEnabled(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	h := NewConditionalSourceHandler(base, slog.LevelError)

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}
