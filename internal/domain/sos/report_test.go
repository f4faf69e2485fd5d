package sos

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func outcomes(statuses ...DeliveryStatus) []DeliveryOutcome {
	result := make([]DeliveryOutcome, 0, len(statuses))
	for i, status := range statuses {
		result = append(result, DeliveryOutcome{
			Contact: Contact{Address: fmt.Sprintf("c%d@example.com", i)},
			Status:  status,
		})
	}

	return result
}

// TestNewReport_Classification covers every overall status and the counting invariant.
func TestNewReport_Classification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		statuses []DeliveryStatus
		want     OverallStatus
		sent     int
	}{
		{"all", []DeliveryStatus{DeliverySent, DeliverySent}, StatusAllSent, 2},
		{"partial", []DeliveryStatus{DeliverySent, DeliveryFailed, DeliverySent}, StatusPartialSent, 2},
		{"none", []DeliveryStatus{DeliveryFailed, DeliveryFailed}, StatusNoneSent, 0},
		{"single sent", []DeliveryStatus{DeliverySent}, StatusAllSent, 1},
		{"single failed", []DeliveryStatus{DeliveryFailed}, StatusNoneSent, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			report, err := NewReport("d1", Coordinate{}, outcomes(tc.statuses...), time.Now())
			require.NoError(t, err)
			require.Equal(t, tc.want, report.Status)
			require.Equal(t, len(tc.statuses), report.TotalContacts)
			require.Equal(t, tc.sent, report.SentCount)
			require.Equal(t, report.TotalContacts, report.SentCount+len(report.Failures))
			require.Equal(t, tc.sent > 0, report.AlertSent())
			require.NotEmpty(t, report.Message())
		})
	}
}

// TestNewReport_KeepsFailureOrder ensures failures follow the input order.
func TestNewReport_KeepsFailureOrder(t *testing.T) {
	t.Parallel()

	report, err := NewReport("d1", Coordinate{}, outcomes(DeliveryFailed, DeliverySent, DeliveryFailed), time.Now())
	require.NoError(t, err)
	require.Len(t, report.Failures, 2)
	require.Equal(t, "c0@example.com", report.Failures[0].Contact.Address)
	require.Equal(t, "c2@example.com", report.Failures[1].Contact.Address)
	require.Equal(t, "SOS alert partially successful. 1 of 3 emails sent.", report.Message())
}

// TestNewReport_Empty refuses to build a report without contacts.
func TestNewReport_Empty(t *testing.T) {
	t.Parallel()

	report, err := NewReport("d1", Coordinate{}, nil, time.Now())
	require.ErrorIs(t, err, ErrNoContacts)
	require.Nil(t, report)
}

// TestAlertPayload_Render checks the subject and that both bodies carry the maps link.
func TestAlertPayload_Render(t *testing.T) {
	t.Parallel()

	payload := AlertPayload{
		UserName: "Anna",
		Location: Coordinate{Latitude: 12.5, Longitude: 77.6, City: "Bengaluru"},
		IssuedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.Equal(t, "EMERGENCY ALERT: Anna needs help!", payload.Subject())

	text, err := payload.Text()
	require.NoError(t, err)
	require.Contains(t, text, "https://www.google.com/maps?q=12.5,77.6")
	require.Contains(t, text, "Detected area: Bengaluru")
	require.Contains(t, text, "2026-01-02 03:04:05 UTC")

	html, err := payload.HTML()
	require.NoError(t, err)
	require.Contains(t, html, "<strong>Anna</strong>")
	require.Contains(t, html, "Latitude: 12.5")
}
