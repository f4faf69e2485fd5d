package sos

// SendResult is what a notification transport reports for one attempt.
// Ordinary delivery failures are reported here rather than as errors.
type SendResult struct {
	// Success is true when the transport accepted the notification.
	Success bool
	// Reference is the transport message id, if any.
	Reference string
	// Error describes a rejected delivery.
	Error string
}

// Sent builds a successful result.
func Sent(reference string) SendResult {
	return SendResult{Success: true, Reference: reference}
}

// Rejected builds a failed result.
func Rejected(reason string) SendResult {
	return SendResult{Error: reason}
}
