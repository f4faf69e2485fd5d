// Package console implements a transport that only logs alerts.
// It is the default for local runs without a mail server.
package console

import (
	"context"

	"github.com/google/uuid"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
)

// Transport logs every alert at INFO and always succeeds.
type Transport struct{}

// New creates a console transport.
func New() *Transport {
	return &Transport{}
}

// Send logs the alert subject and text body.
func (*Transport) Send(ctx context.Context, address string, payload sos.AlertPayload) (sos.SendResult, error) {
	body, err := payload.Text()
	if err != nil {
		return sos.Rejected(err.Error()), nil
	}

	reference := uuid.NewString()

	logger.InfoKV(ctx, payload.Subject(),
		"to", address,
		"reference", reference,
		"body", body,
	)

	return sos.Sent(reference), nil
}
