package sos

import (
	"fmt"
	"time"
)

// DeliveryStatus is the result of one notification attempt.
type DeliveryStatus string

const (
	// DeliverySent means the transport accepted the notification.
	DeliverySent DeliveryStatus = "sent"
	// DeliveryFailed means the transport rejected or errored.
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryOutcome records what happened to one contact.
type DeliveryOutcome struct {
	// Contact is the recipient the attempt was made for.
	Contact Contact
	// Status is sent or failed.
	Status DeliveryStatus
	// Reference is the transport message id for sent notifications.
	Reference string
	// Error describes the failure, empty for sent notifications.
	Error string
}

// OverallStatus classifies a whole dispatch.
type OverallStatus string

const (
	// StatusAllSent means every contact was notified.
	StatusAllSent OverallStatus = "all_sent"
	// StatusPartialSent means some but not all contacts were notified.
	StatusPartialSent OverallStatus = "partial_sent"
	// StatusNoneSent means no contact was notified.
	StatusNoneSent OverallStatus = "none_sent"
)

// Classify derives the overall status from the counters.
func Classify(sentCount, total int) OverallStatus {
	switch {
	case sentCount == total:
		return StatusAllSent
	case sentCount == 0:
		return StatusNoneSent
	default:
		return StatusPartialSent
	}
}

// AlertReport is the itemised result of one dispatch.
// SentCount + len(Failures) always equals TotalContacts, which is at least one.
type AlertReport struct {
	// DispatchID correlates log lines of one dispatch.
	DispatchID string
	// TotalContacts is the size of the contact snapshot.
	TotalContacts int
	// SentCount is the number of contacts the transport accepted.
	SentCount int
	// Failures lists failed outcomes in directory order.
	Failures []DeliveryOutcome
	// Status is the overall classification.
	Status OverallStatus
	// Location is the coordinate that was broadcast.
	Location Coordinate
	// IssuedAt is when the report was assembled.
	IssuedAt time.Time
}

// NewReport aggregates outcomes, given in directory order, into a report.
// It refuses to build a report for zero outcomes.
func NewReport(dispatchID string, location Coordinate, outcomes []DeliveryOutcome, issuedAt time.Time) (*AlertReport, error) {
	if len(outcomes) == 0 {
		return nil, ErrNoContacts
	}

	report := &AlertReport{
		DispatchID:    dispatchID,
		TotalContacts: len(outcomes),
		Failures:      make([]DeliveryOutcome, 0),
		Location:      location,
		IssuedAt:      issuedAt,
	}

	for _, outcome := range outcomes {
		if outcome.Status == DeliverySent {
			report.SentCount++
			continue
		}

		report.Failures = append(report.Failures, outcome)
	}

	report.Status = Classify(report.SentCount, report.TotalContacts)

	return report, nil
}

// AlertSent reports whether at least one contact was reached.
func (r *AlertReport) AlertSent() bool {
	return r.SentCount > 0
}

// Message is the human summary of the report.
func (r *AlertReport) Message() string {
	switch r.Status {
	case StatusAllSent:
		return "SOS alert processed successfully"
	case StatusPartialSent:
		return fmt.Sprintf("SOS alert partially successful. %d of %d emails sent.", r.SentCount, r.TotalContacts)
	default:
		return "SOS alert failed: Could not send emails to any contacts"
	}
}
