package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/repository/location"
	"github.com/oshokin/sos-beacon/internal/service/common"
	"github.com/oshokin/sos-beacon/internal/service/dispatcher"
)

// alertDispatcher is the part of dispatcher.Dispatcher the service uses.
type alertDispatcher interface {
	Dispatch(ctx context.Context, userID string, coordinate sos.Coordinate) (*sos.AlertReport, error)
}

// service implements the business API shared by the HTTP and gRPC transports.
// It is unexported to keep the transports decoupled from the implementation.
type service struct {
	// dispatcher fans alerts out to contacts.
	dispatcher alertDispatcher
	// directory serves contact snapshots.
	directory dispatcher.Directory
	// locations keeps the last dispatched coordinate per user.
	locations location.Store
}

// newService creates a service over the provided collaborators.
func newService(d alertDispatcher, directory dispatcher.Directory, locations location.Store) *service {
	return &service{
		dispatcher: d,
		directory:  directory,
		locations:  locations,
	}
}

// SendAlert dispatches the alert and remembers the coordinate once contacts were known.
func (s *service) SendAlert(ctx context.Context, userID string, coordinate sos.Coordinate) (*sos.AlertReport, error) {
	if device, ok := common.DeviceFromIncoming(ctx); ok {
		ctx = logger.WithKV(ctx, "device_host", device.Hostname, "device_user", device.Username)
	}

	report, err := s.dispatcher.Dispatch(ctx, userID, coordinate)
	if err != nil {
		return nil, err
	}

	if err = s.locations.Save(ctx, strings.TrimSpace(userID), report.Location); err != nil {
		logger.WarnKV(ctx, "Failed to store last location", "dispatch_id", report.DispatchID, "error", err)
	}

	return report, nil
}

// GetContacts returns the contact snapshot of a user.
func (s *service) GetContacts(ctx context.Context, userID string) (*sos.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", sos.ErrInvalidInput)
	}

	user, err := s.directory.Lookup(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user %q: %w", userID, err)
	}

	if user == nil {
		return nil, fmt.Errorf("lookup user %q: %w", userID, sos.ErrUserNotFound)
	}

	return user.Clone(), nil
}

// LastLocation returns the last dispatched coordinate of a user.
func (s *service) LastLocation(ctx context.Context, userID string) (sos.Coordinate, error) {
	userID = strings.TrimSpace(userID)

	coordinate, err := s.locations.Load(ctx, userID)
	if err != nil {
		if errors.Is(err, location.ErrNotFound) {
			return sos.Coordinate{}, fmt.Errorf("%w: no alert recorded for user %q", sos.ErrLocationUnavailable, userID)
		}

		return sos.Coordinate{}, fmt.Errorf("load last location: %w", err)
	}

	return coordinate, nil
}
