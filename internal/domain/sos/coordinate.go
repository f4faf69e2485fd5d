package sos

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Source identifies where a coordinate came from.
type Source string

const (
	// SourceGPS marks a fix reported by the device positioning hardware.
	SourceGPS Source = "gps"
	// SourceIP marks a coarse fix obtained from an IP geolocation provider.
	SourceIP Source = "ip"
)

// IPAccuracyMeters is the accuracy attached to IP-based fixes (city level).
const IPAccuracyMeters = 50_000

// Coordinate is an immutable geographic position. Values are passed by copy,
// so a constructed Coordinate can be shared freely between goroutines.
type Coordinate struct {
	// Latitude in degrees, within [-90, 90].
	Latitude float64
	// Longitude in degrees, within [-180, 180].
	Longitude float64
	// Accuracy is the estimated error radius in meters, zero when unknown.
	Accuracy float64
	// Source tells whether the fix came from GPS or from an IP provider.
	Source Source
	// City is the detected area name, empty when the source does not report one.
	City string
	// ResolvedAt is when the fix was obtained.
	ResolvedAt time.Time
}

// NewCoordinate validates latitude and longitude and returns a coordinate
// stamped with the current time.
func NewCoordinate(latitude, longitude float64) (Coordinate, error) {
	c := Coordinate{
		Latitude:   latitude,
		Longitude:  longitude,
		ResolvedAt: time.Now().UTC(),
	}

	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}

	return c, nil
}

// Validate checks the coordinate bounds.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v is outside [-90, 90]", ErrInvalidInput, c.Latitude)
	}

	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v is outside [-180, 180]", ErrInvalidInput, c.Longitude)
	}

	return nil
}

// HasAccuracy reports whether the source provided an accuracy estimate.
func (c Coordinate) HasAccuracy() bool {
	return c.Accuracy > 0
}

// MapsLink returns a Google Maps URL pointing at the coordinate.
func (c Coordinate) MapsLink() string {
	return "https://www.google.com/maps?q=" + c.String()
}

// String renders the coordinate as "lat,lng".
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}
