package locator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

// GPSSource performs one high-accuracy position query. Failures should be
// reported as *sos.LocationError so the resolver can surface the reason.
type GPSSource interface {
	Query(ctx context.Context) (sos.Coordinate, error)
}

// GPSFunc adapts a function to GPSSource.
type GPSFunc func(ctx context.Context) (sos.Coordinate, error)

// Query calls f.
func (f GPSFunc) Query(ctx context.Context) (sos.Coordinate, error) {
	return f(ctx)
}

// gpsd reports 2 for a 2D fix and 3 for a 3D fix.
const gpsdMinFixMode = 2

const gpsdWatchCommand = "?WATCH={\"enable\":true,\"json\":true}\n"

// GPSD queries a gpsd daemon over its JSON socket protocol.
// Each query opens a fresh connection and waits for a new TPV report,
// so a stale fix is never reused.
type GPSD struct {
	// address is host:port of gpsd, empty when the device has no GPS.
	address string
	// dialer opens the connection.
	dialer net.Dialer
}

// NewGPSD creates a gpsd source. An empty address yields a source that
// always fails with the unsupported reason.
func NewGPSD(address string) *GPSD {
	return &GPSD{address: address}
}

// gpsdReport is the subset of gpsd report fields used here.
type gpsdReport struct {
	Class string    `json:"class"`
	Mode  int       `json:"mode"`
	Lat   *float64  `json:"lat"`
	Lon   *float64  `json:"lon"`
	EPX   float64   `json:"epx"`
	EPY   float64   `json:"epy"`
	Time  time.Time `json:"time"`
}

// Query implements GPSSource.
func (g *GPSD) Query(ctx context.Context) (sos.Coordinate, error) {
	if g.address == "" {
		return sos.Coordinate{}, &sos.LocationError{Reason: sos.ReasonUnsupported}
	}

	conn, err := g.dialer.DialContext(ctx, "tcp", g.address)
	if err != nil {
		return sos.Coordinate{}, classifyGPSError(ctx, fmt.Errorf("connect to gpsd: %w", err))
	}

	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close() //nolint:errcheck // Unblocks the pending read.
	})
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // Close on ctx.Done covers failures.
	}

	if _, err = io.WriteString(conn, gpsdWatchCommand); err != nil {
		return sos.Coordinate{}, classifyGPSError(ctx, fmt.Errorf("send watch command: %w", err))
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report gpsdReport
		if err = json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}

		if report.Class != "TPV" || report.Mode < gpsdMinFixMode || report.Lat == nil || report.Lon == nil {
			continue
		}

		coordinate := sos.Coordinate{
			Latitude:   *report.Lat,
			Longitude:  *report.Lon,
			Accuracy:   max(report.EPX, report.EPY),
			Source:     sos.SourceGPS,
			ResolvedAt: report.Time.UTC(),
		}

		if coordinate.ResolvedAt.IsZero() {
			coordinate.ResolvedAt = time.Now().UTC()
		}

		if err = coordinate.Validate(); err != nil {
			return sos.Coordinate{}, &sos.LocationError{Reason: sos.ReasonPositionUnavailable, Err: err}
		}

		return coordinate, nil
	}

	err = scanner.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}

	return sos.Coordinate{}, classifyGPSError(ctx, fmt.Errorf("read gpsd reports: %w", err))
}

// classifyGPSError maps an arbitrary GPS failure to a LocationError.
// A caller cancellation is returned as is.
func classifyGPSError(ctx context.Context, err error) error {
	var locationErr *sos.LocationError
	if errors.As(err, &locationErr) {
		return err
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	reason := sos.ReasonPositionUnavailable

	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		reason = sos.ReasonTimeout
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		reason = sos.ReasonPermissionDenied
	}

	return &sos.LocationError{Reason: reason, Err: err}
}
