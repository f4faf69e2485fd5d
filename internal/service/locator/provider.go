package locator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/version"
)

// Querier asks one IP geolocation endpoint for the caller's position.
type Querier interface {
	Query(ctx context.Context, endpoint string) (sos.Coordinate, error)
}

// maxProviderBody caps how much of a provider response is read.
const maxProviderBody = 1 << 20

var (
	errUnexpectedStatus = errors.New("unexpected status")
	errNoCoordinates    = errors.New("response has no coordinates")
)

// HTTPProvider queries IP geolocation services with plain GET requests.
type HTTPProvider struct {
	client *http.Client
}

// NewHTTPProvider wraps client, or http.DefaultClient when nil.
// Per-request deadlines come from the context.
func NewHTTPProvider(client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPProvider{client: client}
}

// Query implements Querier.
func (p *HTTPProvider) Query(ctx context.Context, endpoint string) (sos.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sos.Coordinate{}, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		return sos.Coordinate{}, fmt.Errorf("query %s: %w", endpoint, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProviderBody)) //nolint:errcheck // Drained for reuse only.
		return sos.Coordinate{}, fmt.Errorf("query %s: %w %d", endpoint, errUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return sos.Coordinate{}, fmt.Errorf("read %s: %w", endpoint, err)
	}

	coordinate, err := ParseProviderResponse(body)
	if err != nil {
		return sos.Coordinate{}, fmt.Errorf("parse %s: %w", endpoint, err)
	}

	return coordinate, nil
}

// providerResponse covers the response shapes of the supported services:
// {latitude, longitude} as used by ipapi.co and geolocation-db.com and
// {loc: "lat,lng"} as used by ipinfo.io.
type providerResponse struct {
	Latitude  looseFloat `json:"latitude"`
	Longitude looseFloat `json:"longitude"`
	Loc       string     `json:"loc"`
	City      string     `json:"city"`
	Region    string     `json:"region"`
}

// looseFloat accepts a JSON number or a numeric string. Anything else,
// e.g. geolocation-db's "Not found", leaves it unset.
type looseFloat struct {
	value float64
	set   bool
}

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil //nolint:nilerr // Unusable values are treated as absent.
		}

		data = []byte(strings.TrimSpace(s))
	}

	value, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil //nolint:nilerr // Unusable values are treated as absent.
	}

	f.value, f.set = value, true

	return nil
}

// ParseProviderResponse extracts an IP-based coordinate from a provider
// response body. Explicit latitude and longitude win over the combined loc
// field. Out of range values are rejected.
func ParseProviderResponse(body []byte) (sos.Coordinate, error) {
	var resp providerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return sos.Coordinate{}, fmt.Errorf("decode: %w", err)
	}

	latitude, longitude, ok := resp.Latitude.value, resp.Longitude.value, resp.Latitude.set && resp.Longitude.set
	if !ok {
		latitude, longitude, ok = splitLoc(resp.Loc)
	}

	if !ok {
		return sos.Coordinate{}, errNoCoordinates
	}

	coordinate, err := sos.NewCoordinate(latitude, longitude)
	if err != nil {
		return sos.Coordinate{}, err
	}

	coordinate.Source = sos.SourceIP
	coordinate.Accuracy = sos.IPAccuracyMeters
	coordinate.City = strings.TrimSpace(resp.City)

	if coordinate.City == "" {
		coordinate.City = strings.TrimSpace(resp.Region)
	}

	return coordinate, nil
}

func splitLoc(loc string) (float64, float64, bool) {
	rawLatitude, rawLongitude, found := strings.Cut(loc, ",")
	if !found {
		return 0, 0, false
	}

	latitude, err := strconv.ParseFloat(strings.TrimSpace(rawLatitude), 64)
	if err != nil {
		return 0, 0, false
	}

	longitude, err := strconv.ParseFloat(strings.TrimSpace(rawLongitude), 64)
	if err != nil {
		return 0, 0, false
	}

	return latitude, longitude, true
}
