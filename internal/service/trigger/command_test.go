package trigger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/repository/location"
)

var errTestBroken = errors.New("broken")

// resolverFunc adapts a function to coordinateResolver.
type resolverFunc func(ctx context.Context) (sos.Coordinate, error)

func (f resolverFunc) Resolve(ctx context.Context) (sos.Coordinate, error) {
	return f(ctx)
}

// senderFunc adapts a function to alertSender.
type senderFunc func(ctx context.Context, userID string, coordinate sos.Coordinate) (*sos.AlertReport, error)

func (f senderFunc) SendAlert(ctx context.Context, userID string, coordinate sos.Coordinate) (*sos.AlertReport, error) {
	return f(ctx, userID, coordinate)
}

func fix(t *testing.T, latitude, longitude float64) sos.Coordinate {
	t.Helper()

	c, err := sos.NewCoordinate(latitude, longitude)
	require.NoError(t, err)

	c.Source = sos.SourceIP
	c.Accuracy = sos.IPAccuracyMeters
	c.ResolvedAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	return c
}

func exhausted() error {
	return &sos.LocationError{Reason: sos.ReasonProviderExhausted, Cause: sos.ReasonPermissionDenied, Err: errTestBroken}
}

// TestLocate_StoresFreshFix asserts a resolved fix is remembered for later fallbacks.
func TestLocate_StoresFreshFix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := location.NewFileStore(filepath.Join(t.TempDir(), "last.json"))
	want := fix(t, 52.52, 13.4)

	got, err := locate(ctx, resolverFunc(func(context.Context) (sos.Coordinate, error) {
		return want, nil
	}), store, "alice")
	require.NoError(t, err)
	require.Equal(t, want, got)

	stored, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, want, stored)
}

// TestLocate_FallsBackToLastFix asserts the stored fix is used when every source fails.
func TestLocate_FallsBackToLastFix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := location.NewMemoryStore()
	last := fix(t, 48.85, 2.35)
	require.NoError(t, store.Save(ctx, "alice", last))

	core, logs := observer.New(zapcore.WarnLevel)
	ctx = logger.ToContext(ctx, zap.New(core).Sugar())

	got, err := locate(ctx, resolverFunc(func(context.Context) (sos.Coordinate, error) {
		return sos.Coordinate{}, exhausted()
	}), store, "alice")
	require.NoError(t, err)
	require.Equal(t, last, got)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, exhausted().(*sos.LocationError).Message(), entries[0].ContextMap()["hint"])
}

// TestLocate_Failures asserts errors surface when no fallback applies.
func TestLocate_Failures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := locate(ctx, resolverFunc(func(context.Context) (sos.Coordinate, error) {
		return sos.Coordinate{}, exhausted()
	}), location.NewMemoryStore(), "alice")
	require.ErrorIs(t, err, sos.ErrLocationUnavailable)
	require.Contains(t, err.Error(), sos.ReasonPermissionDenied.Message())

	var locErr *sos.LocationError
	require.ErrorAs(t, err, &locErr)
	require.Equal(t, sos.ReasonProviderExhausted, locErr.Reason)

	store := location.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "alice", fix(t, 1, 1)))

	_, err = locate(ctx, resolverFunc(func(context.Context) (sos.Coordinate, error) {
		return sos.Coordinate{}, context.Canceled
	}), store, "alice")
	require.ErrorIs(t, err, context.Canceled)
}

// TestPush_RetriesWhileUnavailable asserts unreachable servers are retried on the interval.
func TestPush_RetriesWhileUnavailable(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		start := time.Now()
		calls := 0

		sender := senderFunc(func(_ context.Context, _ string, coordinate sos.Coordinate) (*sos.AlertReport, error) {
			calls++
			if calls < 3 {
				return nil, status.Error(codes.Unavailable, "connection refused")
			}

			return &sos.AlertReport{DispatchID: "d-1", TotalContacts: 1, SentCount: 1, Location: coordinate}, nil
		})

		report, err := push(context.Background(), sender, "alice", fix(t, 1, 2), time.Second)
		require.NoError(t, err)
		require.Equal(t, "d-1", report.DispatchID)
		require.Equal(t, 3, calls)
		require.Equal(t, 2*time.Second, time.Since(start))
	})
}

// TestPush_StopsOnPermanentError asserts non-transport errors are not retried.
func TestPush_StopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	sender := senderFunc(func(context.Context, string, sos.Coordinate) (*sos.AlertReport, error) {
		calls++
		return nil, sos.ErrNoContacts
	})

	_, err := push(context.Background(), sender, "alice", fix(t, 1, 2), time.Second)
	require.ErrorIs(t, err, sos.ErrNoContacts)
	require.Equal(t, 1, calls)
}

// TestPush_Cancelled asserts cancellation ends the retry loop.
func TestPush_Cancelled(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
		defer cancel()

		sender := senderFunc(func(context.Context, string, sos.Coordinate) (*sos.AlertReport, error) {
			return nil, status.Error(codes.Unavailable, "down")
		})

		_, err := push(ctx, sender, "alice", fix(t, 1, 2), time.Second)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

// TestFormatReport covers the terminal summary.
func TestFormatReport(t *testing.T) {
	t.Parallel()

	c1, err := sos.NewContact("c1@example.com", "")
	require.NoError(t, err)

	c2, err := sos.NewContact("c2@example.com", "")
	require.NoError(t, err)

	coordinate := fix(t, 10, 20)

	report, err := sos.NewReport("d-9", coordinate, []sos.DeliveryOutcome{
		{Contact: c1, Status: sos.DeliveryFailed, Error: "mailbox full"},
		{Contact: c2, Status: sos.DeliverySent, Reference: "ref"},
	}, coordinate.ResolvedAt)
	require.NoError(t, err)

	text := formatReport(report)
	require.Contains(t, text, report.Message())
	require.Contains(t, text, "dispatch d-9: 1 of 2 contacts notified")
	require.Contains(t, text, "failed c1@example.com: mailbox full")
	require.Contains(t, text, "https://www.google.com/maps?q=10,20")
}

// TestReportError asserts only a report that reached nobody fails the run.
func TestReportError(t *testing.T) {
	t.Parallel()

	contact, err := sos.NewContact("c1@example.com", "")
	require.NoError(t, err)

	coordinate := fix(t, 10, 20)

	failed, err := sos.NewReport("d-1", coordinate, []sos.DeliveryOutcome{
		{Contact: contact, Status: sos.DeliveryFailed, Error: "mailbox full"},
	}, coordinate.ResolvedAt)
	require.NoError(t, err)

	err = reportError(failed)
	require.ErrorIs(t, err, ErrNoContactReached)
	require.Contains(t, err.Error(), failed.Message())

	sent, err := sos.NewReport("d-2", coordinate, []sos.DeliveryOutcome{
		{Contact: contact, Status: sos.DeliverySent, Reference: "ref"},
	}, coordinate.ResolvedAt)
	require.NoError(t, err)
	require.NoError(t, reportError(sent))
}

// TestDescribeCoordinate covers optional accuracy and city.
func TestDescribeCoordinate(t *testing.T) {
	t.Parallel()

	c := fix(t, 10, 20)
	c.City = "Paris"
	require.Equal(t, "10,20 via ip, accuracy 50000m, Paris", describeCoordinate(c))

	c = sos.Coordinate{Latitude: 1.5, Longitude: -2, Source: sos.SourceGPS}
	require.Equal(t, "1.5,-2 via gps", describeCoordinate(c))
	require.Equal(t, "local", storeKey(""))
	require.Equal(t, "bob", storeKey("bob"))
}
