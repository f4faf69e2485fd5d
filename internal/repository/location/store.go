package location

import (
	"context"
	"errors"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

// Store keeps the last known coordinate per user.
type Store interface {
	Load(ctx context.Context, userID string) (sos.Coordinate, error)
	Save(ctx context.Context, userID string, coordinate sos.Coordinate) error
}

// ErrNotFound is returned when no coordinate is stored for the user.
var ErrNotFound = errors.New("location not found")
