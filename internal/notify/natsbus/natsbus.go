// Package natsbus publishes alerts to NATS for downstream delivery workers.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

// DefaultSubjectPrefix is used when the configuration leaves the prefix empty.
const DefaultSubjectPrefix = "sos.alerts"

// publisher is the part of nats.Conn used here.
type publisher interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// Message is the JSON document published for every contact.
type Message struct {
	ID         string    `json:"id"`
	DispatchID string    `json:"dispatchId"`
	To         string    `json:"to"`
	UserName   string    `json:"userName"`
	Subject    string    `json:"subject"`
	Text       string    `json:"text"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	City       string    `json:"city,omitempty"`
	MapsLink   string    `json:"mapsLink"`
	IssuedAt   time.Time `json:"issuedAt"`
}

// Transport publishes one message per contact to <prefix>.<dispatch id>.
// A send succeeds once the server acknowledged the flush.
type Transport struct {
	conn   publisher
	prefix string
	close  func()
}

// Connect dials NATS and returns a transport that owns the connection.
func Connect(url, subjectPrefix string, timeout time.Duration) (*Transport, error) {
	conn, err := nats.Connect(url,
		nats.Name("sos-server"),
		nats.Timeout(timeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	transport := newTransport(conn, subjectPrefix)
	transport.close = conn.Close

	return transport, nil
}

func newTransport(conn publisher, subjectPrefix string) *Transport {
	subjectPrefix = strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}

	return &Transport{
		conn:   conn,
		prefix: subjectPrefix,
	}
}

// Send publishes the alert for address.
func (t *Transport) Send(ctx context.Context, address string, payload sos.AlertPayload) (sos.SendResult, error) {
	text, err := payload.Text()
	if err != nil {
		return sos.Rejected(err.Error()), nil
	}

	message := Message{
		ID:         uuid.NewString(),
		DispatchID: payload.DispatchID,
		To:         address,
		UserName:   payload.UserName,
		Subject:    payload.Subject(),
		Text:       text,
		Latitude:   payload.Location.Latitude,
		Longitude:  payload.Location.Longitude,
		Accuracy:   payload.Location.Accuracy,
		City:       payload.Location.City,
		MapsLink:   payload.Location.MapsLink(),
		IssuedAt:   payload.IssuedAt,
	}

	data, err := json.Marshal(message)
	if err != nil {
		return sos.SendResult{}, fmt.Errorf("encode alert: %w", err)
	}

	msg := nats.NewMsg(t.subject(payload.DispatchID))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, message.ID)
	msg.Header.Set("Sos-Recipient", address)

	if err = t.conn.PublishMsg(msg); err != nil {
		return sos.Rejected(fmt.Sprintf("publish: %v", err)), nil
	}

	if err = t.conn.FlushWithContext(ctx); err != nil {
		return sos.Rejected(fmt.Sprintf("flush: %v", err)), nil
	}

	return sos.Sent(message.ID), nil
}

// Close closes the connection opened by Connect.
func (t *Transport) Close() {
	if t.close != nil {
		t.close()
	}
}

func (t *Transport) subject(dispatchID string) string {
	if dispatchID == "" {
		return t.prefix
	}

	return t.prefix + "." + dispatchID
}
