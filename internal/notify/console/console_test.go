package console

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
)

func TestSend(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).Sugar())

	payload := sos.AlertPayload{
		UserName: "Anna",
		Location: sos.Coordinate{Latitude: 1.5, Longitude: 2.5},
		IssuedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	result, err := New().Send(ctx, "mom@example.com", payload)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotEmpty(t, result.Reference)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "EMERGENCY ALERT: Anna needs help!", entries[0].Message)
	require.Equal(t, "mom@example.com", entries[0].ContextMap()["to"])
	require.Contains(t, entries[0].ContextMap()["body"], "https://www.google.com/maps?q=1.5,2.5")
}
