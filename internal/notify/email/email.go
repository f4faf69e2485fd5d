// Package email delivers alerts over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
)

var errSenderRequired = errors.New("sender address is required")

// sender is the part of mail.Client used for delivery.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Options configures the SMTP transport.
type Options struct {
	// Host is the SMTP server host name.
	Host string
	// Port is the SMTP server port.
	Port int
	// Username enables PLAIN authentication when set.
	Username string
	// Password is the SMTP password.
	Password string
	// From is the envelope and header sender.
	From string
	// Timeout bounds the SMTP conversation.
	Timeout time.Duration
}

// Transport sends one e-mail per contact. A new SMTP client is dialled for
// every send, so concurrent sends share no connection state.
type Transport struct {
	// from is the sender address.
	from string
	// newSender creates a client for one send.
	newSender func() (sender, error)
}

// New creates an SMTP transport.
func New(opts Options) (*Transport, error) {
	if opts.From == "" {
		return nil, errSenderRequired
	}

	clientOptions := []mail.Option{
		mail.WithPort(opts.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}

	if opts.Timeout > 0 {
		clientOptions = append(clientOptions, mail.WithTimeout(opts.Timeout))
	}

	if opts.Username != "" {
		clientOptions = append(clientOptions,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	// Validate the options once so misconfiguration fails at startup.
	if _, err := mail.NewClient(opts.Host, clientOptions...); err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Transport{
		from: opts.From,
		newSender: func() (sender, error) {
			return mail.NewClient(opts.Host, clientOptions...)
		},
	}, nil
}

// Send builds the alert message and delivers it. Build and delivery
// failures are reported as rejected results.
func (t *Transport) Send(ctx context.Context, address string, payload sos.AlertPayload) (sos.SendResult, error) {
	message, reference, err := t.buildMessage(address, payload)
	if err != nil {
		return sos.Rejected(err.Error()), nil
	}

	client, err := t.newSender()
	if err != nil {
		return sos.SendResult{}, fmt.Errorf("create smtp client: %w", err)
	}

	if err = client.DialAndSendWithContext(ctx, message); err != nil {
		logger.DebugKV(ctx, "SMTP delivery failed", "to", address, "error", err)
		return sos.Rejected(err.Error()), nil
	}

	return sos.Sent(reference), nil
}

func (t *Transport) buildMessage(address string, payload sos.AlertPayload) (*mail.Msg, string, error) {
	text, err := payload.Text()
	if err != nil {
		return nil, "", err
	}

	html, err := payload.HTML()
	if err != nil {
		return nil, "", err
	}

	message := mail.NewMsg()

	if err = message.From(t.from); err != nil {
		return nil, "", fmt.Errorf("set sender: %w", err)
	}

	if err = message.To(address); err != nil {
		return nil, "", fmt.Errorf("set recipient: %w", err)
	}

	reference := fmt.Sprintf("<%s@sos-beacon>", uuid.NewString())

	message.Subject(payload.Subject())
	message.SetGenHeader(mail.HeaderMessageID, reference)
	message.SetImportance(mail.ImportanceUrgent)
	message.SetBodyString(mail.TypeTextPlain, text)
	message.AddAlternativeString(mail.TypeTextHTML, html)

	return message, reference, nil
}
