package email

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

// fakeSender records messages and fails when err is set.
type fakeSender struct {
	mu       sync.Mutex
	messages []*mail.Msg
	err      error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messages = append(f.messages, messages...)

	return f.err
}

func newTestTransport(fake *fakeSender) *Transport {
	return &Transport{
		from:      "alerts@example.com",
		newSender: func() (sender, error) { return fake, nil },
	}
}

func payload() sos.AlertPayload {
	return sos.AlertPayload{
		DispatchID: "d-1",
		UserName:   "Anna",
		Location:   sos.Coordinate{Latitude: 12.5, Longitude: 77.6, City: "Bengaluru"},
		IssuedAt:   time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func TestSend_BuildsAlertMessage(t *testing.T) {
	t.Parallel()

	fake := new(fakeSender)

	result, err := newTestTransport(fake).Send(context.Background(), "mom@example.com", payload())
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Contains(t, result.Reference, "@sos-beacon>")
	require.Len(t, fake.messages, 1)

	var raw bytes.Buffer

	_, err = fake.messages[0].WriteTo(&raw)
	require.NoError(t, err)

	rendered := raw.String()
	require.Contains(t, rendered, "EMERGENCY ALERT: Anna needs help!")
	require.Contains(t, rendered, "mom@example.com")
	require.Contains(t, rendered, "text/html")
	require.Contains(t, rendered, result.Reference)
}

func TestSend_DeliveryFailureIsRejection(t *testing.T) {
	t.Parallel()

	fake := &fakeSender{err: errors.New("550 mailbox unavailable")}

	result, err := newTestTransport(fake).Send(context.Background(), "mom@example.com", payload())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "550 mailbox unavailable")
}

func TestSend_InvalidRecipientIsRejection(t *testing.T) {
	t.Parallel()

	fake := new(fakeSender)

	result, err := newTestTransport(fake).Send(context.Background(), "not an address", payload())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Empty(t, fake.messages)
}

func TestNew_RequiresSender(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Host: "smtp.example.com", Port: 587})
	require.ErrorIs(t, err, errSenderRequired)

	transport, err := New(Options{Host: "smtp.example.com", Port: 587, From: "alerts@example.com", Username: "u", Password: "p"})
	require.NoError(t, err)
	require.NotNil(t, transport)
}
