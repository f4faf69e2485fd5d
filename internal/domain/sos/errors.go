package sos

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed or missing request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserNotFound is returned when the directory has no such user.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoContacts is returned when the user has no emergency contacts.
	ErrNoContacts = errors.New("no emergency contacts")
	// ErrLocationUnavailable is returned when every location source failed.
	ErrLocationUnavailable = errors.New("location unavailable")
)

// FailureReason classifies why a location source failed.
type FailureReason string

const (
	// ReasonPermissionDenied means the positioning service refused access.
	ReasonPermissionDenied FailureReason = "permission_denied"
	// ReasonPositionUnavailable means the service answered but had no fix.
	ReasonPositionUnavailable FailureReason = "position_unavailable"
	// ReasonTimeout means no fix arrived before the deadline.
	ReasonTimeout FailureReason = "timeout"
	// ReasonUnsupported means no positioning service is configured.
	ReasonUnsupported FailureReason = "unsupported"
	// ReasonProviderExhausted means every IP provider failed.
	ReasonProviderExhausted FailureReason = "provider_exhausted"
)

// Message returns a short text suitable for showing to the user.
func (r FailureReason) Message() string {
	switch r {
	case ReasonPermissionDenied:
		return "location access was denied, allow it in the device settings"
	case ReasonPositionUnavailable:
		return "location unavailable, check the positioning service"
	case ReasonTimeout:
		return "location request timed out"
	case ReasonUnsupported:
		return "positioning is not supported on this device"
	case ReasonProviderExhausted:
		return "could not determine the approximate location"
	default:
		return "please enable location services"
	}
}

// LocationError carries the last classified reason of a failed resolution.
type LocationError struct {
	// Reason is the classification of the last failure.
	Reason FailureReason
	// Cause is the classification of the earlier GPS stage, empty when there
	// was none or it is Reason itself.
	Cause FailureReason
	// Err is the underlying cause, if any.
	Err error
}

func (e *LocationError) Error() string {
	reason := string(e.Reason)
	if e.Cause != "" {
		reason = fmt.Sprintf("%s (gps: %s)", e.Reason, e.Cause)
	}

	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrLocationUnavailable, reason)
	}

	return fmt.Sprintf("%s: %s: %v", ErrLocationUnavailable, reason, e.Err)
}

// Message returns the user facing text for the failure, naming the GPS
// problem first when there was one.
func (e *LocationError) Message() string {
	if e.Cause == "" {
		return e.Reason.Message()
	}

	return e.Cause.Message() + "; " + e.Reason.Message()
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *LocationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLocationUnavailable}
	}

	return []error{ErrLocationUnavailable, e.Err}
}
