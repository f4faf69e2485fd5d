package sospb

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

// ErrMalformed is returned for structs that do not describe a coordinate.
var ErrMalformed = errors.New("malformed coordinate record")

// FromCoordinate converts a coordinate into a protobuf Struct.
// Optional fields are omitted when unset.
func FromCoordinate(coordinate sos.Coordinate) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"latitude":  structpb.NewNumberValue(coordinate.Latitude),
		"longitude": structpb.NewNumberValue(coordinate.Longitude),
		"source":    structpb.NewStringValue(string(coordinate.Source)),
	}

	if coordinate.HasAccuracy() {
		fields["accuracy"] = structpb.NewNumberValue(coordinate.Accuracy)
	}

	if coordinate.City != "" {
		fields["city"] = structpb.NewStringValue(coordinate.City)
	}

	if !coordinate.ResolvedAt.IsZero() {
		fields["resolvedAt"] = structpb.NewStringValue(coordinate.ResolvedAt.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// ToCoordinate converts a protobuf Struct back into a validated coordinate.
func ToCoordinate(message *structpb.Struct) (sos.Coordinate, error) {
	fields := message.GetFields()

	latitude, okLatitude := fields["latitude"].GetKind().(*structpb.Value_NumberValue)
	longitude, okLongitude := fields["longitude"].GetKind().(*structpb.Value_NumberValue)

	if !okLatitude || !okLongitude {
		return sos.Coordinate{}, fmt.Errorf("%w: latitude and longitude are required", ErrMalformed)
	}

	coordinate := sos.Coordinate{
		Latitude:  latitude.NumberValue,
		Longitude: longitude.NumberValue,
		Accuracy:  fields["accuracy"].GetNumberValue(),
		Source:    sos.Source(fields["source"].GetStringValue()),
		City:      fields["city"].GetStringValue(),
	}

	if raw := fields["resolvedAt"].GetStringValue(); raw != "" {
		resolvedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return sos.Coordinate{}, fmt.Errorf("%w: resolvedAt: %w", ErrMalformed, err)
		}

		coordinate.ResolvedAt = resolvedAt.UTC()
	}

	if err := coordinate.Validate(); err != nil {
		return sos.Coordinate{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return coordinate, nil
}
