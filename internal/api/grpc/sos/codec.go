package sos

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/domain/sos/sospb"
)

var errMalformedMessage = errors.New("malformed message")

// EncodeAlertRequest builds the SendAlert request.
func EncodeAlertRequest(userID string, location domain.Coordinate) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"userId":   structpb.NewStringValue(userID),
		"location": structpb.NewStructValue(sospb.FromCoordinate(location)),
	}}
}

// DecodeAlertRequest reads a SendAlert request. Missing fields are reported
// as domain.ErrInvalidInput.
func DecodeAlertRequest(message *structpb.Struct) (string, domain.Coordinate, error) {
	fields := message.GetFields()

	userID := strings.TrimSpace(fields["userId"].GetStringValue())
	if userID == "" {
		return "", domain.Coordinate{}, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}

	location := fields["location"].GetStructValue()
	if location == nil {
		return "", domain.Coordinate{}, fmt.Errorf("%w: location is required", domain.ErrInvalidInput)
	}

	coordinate, err := sospb.ToCoordinate(location)
	if err != nil {
		return "", domain.Coordinate{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	return userID, coordinate, nil
}

// EncodeUserRequest builds a request that only names a user.
func EncodeUserRequest(userID string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"userId": structpb.NewStringValue(userID),
	}}
}

// EncodeReport converts a report to its wire form.
func EncodeReport(report *domain.AlertReport) *structpb.Struct {
	failures := make([]*structpb.Value, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"address": structpb.NewStringValue(f.Contact.Address),
			"error":   structpb.NewStringValue(f.Error),
		}}))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"dispatchId":    structpb.NewStringValue(report.DispatchID),
		"status":        structpb.NewStringValue(string(report.Status)),
		"alertSent":     structpb.NewBoolValue(report.AlertSent()),
		"message":       structpb.NewStringValue(report.Message()),
		"emailsSent":    structpb.NewNumberValue(float64(report.SentCount)),
		"totalContacts": structpb.NewNumberValue(float64(report.TotalContacts)),
		"failedEmails":  structpb.NewListValue(&structpb.ListValue{Values: failures}),
		"location":      structpb.NewStructValue(sospb.FromCoordinate(report.Location)),
		"mapsLink":      structpb.NewStringValue(report.Location.MapsLink()),
		"timestamp":     structpb.NewStringValue(report.IssuedAt.UTC().Format(time.RFC3339Nano)),
	}}
}

// DecodeReport rebuilds a report from its wire form.
func DecodeReport(message *structpb.Struct) (*domain.AlertReport, error) {
	fields := message.GetFields()

	location, err := sospb.ToCoordinate(fields["location"].GetStructValue())
	if err != nil {
		return nil, fmt.Errorf("%w: location: %w", errMalformedMessage, err)
	}

	report := &domain.AlertReport{
		DispatchID:    fields["dispatchId"].GetStringValue(),
		Status:        domain.OverallStatus(fields["status"].GetStringValue()),
		SentCount:     int(fields["emailsSent"].GetNumberValue()),
		TotalContacts: int(fields["totalContacts"].GetNumberValue()),
		Location:      location,
	}

	if raw := fields["timestamp"].GetStringValue(); raw != "" {
		if report.IssuedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("%w: timestamp: %w", errMalformedMessage, err)
		}
	}

	for _, value := range fields["failedEmails"].GetListValue().GetValues() {
		failure := value.GetStructValue().GetFields()
		report.Failures = append(report.Failures, domain.DeliveryOutcome{
			Contact: domain.Contact{Address: failure["address"].GetStringValue()},
			Status:  domain.DeliveryFailed,
			Error:   failure["error"].GetStringValue(),
		})
	}

	if report.SentCount+len(report.Failures) != report.TotalContacts {
		return nil, fmt.Errorf("%w: %d sent and %d failed of %d contacts",
			errMalformedMessage, report.SentCount, len(report.Failures), report.TotalContacts)
	}

	return report, nil
}

// EncodeUser converts a contact snapshot to its wire form.
func EncodeUser(user *domain.User) *structpb.Struct {
	contacts := make([]*structpb.Value, 0, len(user.Contacts))
	for _, c := range user.Contacts {
		contact := map[string]*structpb.Value{
			"email": structpb.NewStringValue(c.Address),
		}

		if c.DisplayName != "" {
			contact["name"] = structpb.NewStringValue(c.DisplayName)
		}

		contacts = append(contacts, structpb.NewStructValue(&structpb.Struct{Fields: contact}))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"userId":            structpb.NewStringValue(user.ID),
		"name":              structpb.NewStringValue(user.Name),
		"emergencyContacts": structpb.NewListValue(&structpb.ListValue{Values: contacts}),
	}}
}

// DecodeUser rebuilds a contact snapshot from its wire form.
func DecodeUser(message *structpb.Struct) *domain.User {
	fields := message.GetFields()

	user := &domain.User{
		ID:   fields["userId"].GetStringValue(),
		Name: fields["name"].GetStringValue(),
	}

	for _, value := range fields["emergencyContacts"].GetListValue().GetValues() {
		contact := value.GetStructValue().GetFields()
		user.Contacts = append(user.Contacts, domain.Contact{
			Address:     contact["email"].GetStringValue(),
			DisplayName: contact["name"].GetStringValue(),
		})
	}

	return user
}
