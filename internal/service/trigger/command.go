package trigger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/repository/location"
	"github.com/oshokin/sos-beacon/internal/service/common"
	"github.com/oshokin/sos-beacon/internal/service/locator"
)

// Options configures the trigger.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// UserID overrides the user from config when specified.
	UserID string

	// LocateOnly resolves and prints the position without raising an alert.
	LocateOnly bool

	// Out receives the human readable result, os.Stdout when nil.
	Out io.Writer
}

// defaultPushInterval defines retry delay when pushing the alert to the server.
const defaultPushInterval = 1 * time.Second

// localKey names the last-location entry when no user is configured.
const localKey = "local"

var (
	// errUserRequired is returned when an alert names no user.
	errUserRequired = errors.New("user id must be provided by flag or settings")
	// ErrNoContactReached is returned after printing a report in which every send failed.
	ErrNoContactReached = errors.New("no emergency contact was reached")
)

// coordinateResolver is the part of locator.Resolver the trigger uses.
type coordinateResolver interface {
	Resolve(ctx context.Context) (sos.Coordinate, error)
}

// alertSender is the part of common.Client the trigger uses.
type alertSender interface {
	SendAlert(ctx context.Context, userID string, coordinate sos.Coordinate) (*sos.AlertReport, error)
}

// Run resolves the position and raises the alert.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "sos-trigger")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		userID = strings.TrimSpace(cfg.UserID)
	}

	resolver := locator.New(
		locator.WithGPS(locator.NewGPSD(cfg.Locator.GPSDAddress)),
		locator.WithProviders(cfg.Locator.Providers...),
		locator.WithGPSTimeout(cfg.Locator.GPSTimeout),
		locator.WithProviderTimeout(cfg.Locator.ProviderTimeout),
	)
	store := location.NewFileStore(cfg.Locator.LastLocationFile)

	coordinate, err := locate(ctx, resolver, store, storeKey(userID))
	if err != nil {
		return err
	}

	if opts.LocateOnly {
		_, err = fmt.Fprintf(out, "%s\n%s\n", describeCoordinate(coordinate), coordinate.MapsLink())
		return err
	}

	if userID == "" {
		return errUserRequired
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify the device for the server log.
	device, err := common.DetectDevice()
	if err != nil {
		return err
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithDevice(device))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Raising alert", "server_address", serverAddress, "user_id", userID)

	report, err := push(ctx, client, userID, coordinate, defaultPushInterval)
	if err != nil {
		return err
	}

	if _, err = io.WriteString(out, formatReport(report)); err != nil {
		return err
	}

	return reportError(report)
}

// reportError fails the run when no contact was reached, so scripts see it
// in the exit status.
func reportError(report *sos.AlertReport) error {
	if report.AlertSent() {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrNoContactReached, report.Message())
}

// locate resolves the current position. When every source fails it reuses
// the last stored fix, and it stores every fresh one.
func locate(ctx context.Context, resolver coordinateResolver, store location.Store, key string) (sos.Coordinate, error) {
	coordinate, err := resolver.Resolve(ctx)
	if err == nil {
		if saveErr := store.Save(ctx, key, coordinate); saveErr != nil {
			logger.WarnKV(ctx, "Failed to remember location", "error", saveErr)
		}

		return coordinate, nil
	}

	if !errors.Is(err, sos.ErrLocationUnavailable) {
		return sos.Coordinate{}, fmt.Errorf("resolve location: %w", err)
	}

	hint := locationHint(err)

	last, loadErr := store.Load(ctx, key)
	if loadErr != nil {
		return sos.Coordinate{}, fmt.Errorf("resolve location: %s: %w", hint, err)
	}

	logger.WarnKV(ctx, "Location unavailable, using last known fix",
		"hint", hint,
		"error", err,
		"resolved_at", last.ResolvedAt.Format(time.RFC3339),
	)

	return last, nil
}

// locationHint is the user facing text for a failed resolution.
func locationHint(err error) string {
	var locationErr *sos.LocationError
	if errors.As(err, &locationErr) {
		return locationErr.Message()
	}

	return sos.FailureReason("").Message()
}

// push sends the alert, retrying on interval while the server is unreachable.
func push(
	ctx context.Context,
	sender alertSender,
	userID string,
	coordinate sos.Coordinate,
	interval time.Duration,
) (*sos.AlertReport, error) {
	// attempt tries once, returns a nil report when the call should be retried.
	attempt := func() (*sos.AlertReport, error) {
		report, err := sender.SendAlert(ctx, userID, coordinate)
		if err == nil {
			return report, nil
		}

		if ctx.Err() == nil && common.IsUnavailable(err) {
			logger.ErrorKV(ctx, "SendAlert failed, retrying", "error", err)
			return nil, nil
		}

		return nil, fmt.Errorf("send alert: %w", err)
	}

	// Attempt immediately before starting retry loop.
	if report, err := attempt(); err != nil || report != nil {
		return report, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if report, err := attempt(); err != nil || report != nil {
				return report, err
			}
		}
	}
}

func storeKey(userID string) string {
	if userID == "" {
		return localKey
	}

	return userID
}

// describeCoordinate formats a coordinate with its source and accuracy.
func describeCoordinate(c sos.Coordinate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s via %s", c.String(), c.Source)

	if c.HasAccuracy() {
		fmt.Fprintf(&b, ", accuracy %.0fm", c.Accuracy)
	}

	if c.City != "" {
		fmt.Fprintf(&b, ", %s", c.City)
	}

	return b.String()
}

// formatReport renders the report for the terminal.
func formatReport(report *sos.AlertReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", report.Message())
	fmt.Fprintf(&b, "dispatch %s: %d of %d contacts notified\n", report.DispatchID, report.SentCount, report.TotalContacts)

	for _, failure := range report.Failures {
		fmt.Fprintf(&b, "  failed %s: %s\n", failure.Contact.Address, failure.Error)
	}

	fmt.Fprintf(&b, "location %s\n", report.Location.MapsLink())

	return b.String()
}
