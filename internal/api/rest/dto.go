package rest

import (
	"time"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

// sendAlertRequest is the body of POST /sos/send. Pointers tell a missing
// coordinate apart from a zero one.
type sendAlertRequest struct {
	UserID    string   `json:"userId"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy,omitempty"`
	Source    string   `json:"source,omitempty"`
	City      string   `json:"city,omitempty"`
}

// locationDTO is the JSON form of a coordinate.
type locationDTO struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Accuracy   float64    `json:"accuracy,omitempty"`
	Source     string     `json:"source,omitempty"`
	City       string     `json:"city,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

type failedEmailDTO struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

// alertResponse mirrors AlertReport on the wire.
type alertResponse struct {
	Message       string           `json:"message"`
	AlertSent     bool             `json:"alertSent"`
	DispatchID    string           `json:"dispatchId"`
	Status        string           `json:"status"`
	EmailsSent    int              `json:"emailsSent"`
	FailedEmails  []failedEmailDTO `json:"failedEmails"`
	TotalContacts int              `json:"totalContacts"`
	Location      locationDTO      `json:"location"`
	MapsLink      string           `json:"mapsLink"`
	Timestamp     time.Time        `json:"timestamp"`
}

type contactDTO struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type contactsResponse struct {
	UserID            string       `json:"userId"`
	EmergencyContacts []contactDTO `json:"emergencyContacts"`
}

type locationResponse struct {
	UserID   string      `json:"userId"`
	Location locationDTO `json:"location"`
	MapsLink string      `json:"mapsLink"`
}

type errorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// toCoordinate validates the request coordinate.
func (r *sendAlertRequest) toCoordinate() (sos.Coordinate, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return sos.Coordinate{}, false
	}

	coordinate := sos.Coordinate{
		Latitude:   *r.Latitude,
		Longitude:  *r.Longitude,
		Accuracy:   max(r.Accuracy, 0),
		Source:     sos.Source(r.Source),
		City:       r.City,
		ResolvedAt: time.Now().UTC(),
	}

	return coordinate, true
}

func toLocationDTO(c sos.Coordinate) locationDTO {
	dto := locationDTO{
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Accuracy:  c.Accuracy,
		Source:    string(c.Source),
		City:      c.City,
	}

	if !c.ResolvedAt.IsZero() {
		resolvedAt := c.ResolvedAt
		dto.ResolvedAt = &resolvedAt
	}

	return dto
}

func toAlertResponse(report *sos.AlertReport) alertResponse {
	failed := make([]failedEmailDTO, 0, len(report.Failures))
	for _, f := range report.Failures {
		failed = append(failed, failedEmailDTO{Address: f.Contact.Address, Error: f.Error})
	}

	return alertResponse{
		Message:       report.Message(),
		AlertSent:     report.AlertSent(),
		DispatchID:    report.DispatchID,
		Status:        string(report.Status),
		EmailsSent:    report.SentCount,
		FailedEmails:  failed,
		TotalContacts: report.TotalContacts,
		Location:      toLocationDTO(report.Location),
		MapsLink:      report.Location.MapsLink(),
		Timestamp:     report.IssuedAt,
	}
}

func toContactsResponse(user *sos.User) contactsResponse {
	contacts := make([]contactDTO, 0, len(user.Contacts))
	for _, c := range user.Contacts {
		contacts = append(contacts, contactDTO{Email: c.Address, Name: c.DisplayName})
	}

	return contactsResponse{
		UserID:            user.ID,
		EmergencyContacts: contacts,
	}
}
