package locator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/version"
)

func TestParseProviderResponse_Shapes(t *testing.T) {
	t.Parallel()

	explicit, err := ParseProviderResponse([]byte(`{"latitude": 12.5, "longitude": 77.6, "city": "Bengaluru"}`))
	require.NoError(t, err)

	combined, err := ParseProviderResponse([]byte(`{"loc": "12.5,77.6", "city": "Bengaluru"}`))
	require.NoError(t, err)

	for _, c := range []sos.Coordinate{explicit, combined} {
		require.Equal(t, 12.5, c.Latitude)
		require.Equal(t, 77.6, c.Longitude)
		require.Equal(t, sos.SourceIP, c.Source)
		require.Equal(t, float64(sos.IPAccuracyMeters), c.Accuracy)
		require.Equal(t, "Bengaluru", c.City)
	}
}

func TestParseProviderResponse_Variants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantErr   bool
		latitude  float64
		longitude float64
		city      string
	}{
		{
			name:      "string coordinates",
			body:      `{"latitude": "40.7128", "longitude": "-74.0060", "region": "New York"}`,
			latitude:  40.7128,
			longitude: -74.006,
			city:      "New York",
		},
		{
			name:      "city wins over region",
			body:      `{"loc": " 51.5 , -0.12 ", "city": "London", "region": "England"}`,
			latitude:  51.5,
			longitude: -0.12,
			city:      "London",
		},
		{
			name:      "explicit fields win over loc",
			body:      `{"latitude": 1, "longitude": 2, "loc": "3,4"}`,
			latitude:  1,
			longitude: 2,
		},
		{
			name:      "unusable fields fall back to loc",
			body:      `{"latitude": "Not found", "longitude": "Not found", "loc": "3,4"}`,
			latitude:  3,
			longitude: 4,
		},
		{
			name:      "zero is a coordinate",
			body:      `{"latitude": 0, "longitude": 0}`,
			latitude:  0,
			longitude: 0,
		},
		{name: "error payload", body: `{"error": true, "reason": "RateLimited"}`, wantErr: true},
		{name: "latitude out of range", body: `{"latitude": 91, "longitude": 10}`, wantErr: true},
		{name: "longitude out of range", body: `{"loc": "10,181"}`, wantErr: true},
		{name: "malformed loc", body: `{"loc": "10;20"}`, wantErr: true},
		{name: "only latitude", body: `{"latitude": 10}`, wantErr: true},
		{name: "not json", body: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := ParseProviderResponse([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.latitude, c.Latitude)
			require.Equal(t, tt.longitude, c.Longitude)
			require.Equal(t, tt.city, c.City)
		})
	}
}

func TestHTTPProvider_Query(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, version.UserAgent(), r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"latitude": 48.85, "longitude": 2.35, "city": "Paris"}`))
	})
	mux.HandleFunc("/limited", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": true}`, http.StatusTooManyRequests)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	provider := NewHTTPProvider(server.Client())

	c, err := provider.Query(context.Background(), server.URL+"/json")
	require.NoError(t, err)
	require.Equal(t, 48.85, c.Latitude)
	require.Equal(t, "Paris", c.City)

	_, err = provider.Query(context.Background(), server.URL+"/limited")
	require.ErrorIs(t, err, errUnexpectedStatus)
}
