package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	got, ok := ParseLogLevel("unknown")
	require.False(t, ok)
	require.Equal(t, zapcore.InfoLevel, got)
}

// TestContextHelpers checks that fields and names travel with the context.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())

	ctx = WithName(ctx, "dispatcher")
	ctx = WithKV(ctx, "dispatch_id", "d-1")

	InfoKV(ctx, "report ready", "sent", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "dispatcher", entries[0].LoggerName)
	require.Equal(t, "d-1", entries[0].ContextMap()["dispatch_id"])
	require.EqualValues(t, 2, entries[0].ContextMap()["sent"])
}

// TestFromContext_FallsBackToGlobal returns the global logger for bare contexts.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}
