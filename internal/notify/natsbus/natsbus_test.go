package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

// fakeConn records published messages.
type fakeConn struct {
	mu         sync.Mutex
	published  []*nats.Msg
	publishErr error
	flushErr   error
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return f.publishErr
	}

	f.published = append(f.published, msg)

	return nil
}

func (f *fakeConn) FlushWithContext(context.Context) error {
	return f.flushErr
}

func payload() sos.AlertPayload {
	return sos.AlertPayload{
		DispatchID: "7f1c",
		UserName:   "Anna",
		Location:   sos.Coordinate{Latitude: 40, Longitude: -73, City: "NYC"},
		IssuedAt:   time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func TestSend_Publishes(t *testing.T) {
	t.Parallel()

	conn := new(fakeConn)
	transport := newTransport(conn, " alerts.sos. ")

	result, err := transport.Send(context.Background(), "mom@example.com", payload())
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, conn.published, 1)

	msg := conn.published[0]
	require.Equal(t, "alerts.sos.7f1c", msg.Subject)
	require.Equal(t, result.Reference, msg.Header.Get(nats.MsgIdHdr))
	require.Equal(t, "mom@example.com", msg.Header.Get("Sos-Recipient"))

	var decoded Message
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	require.Equal(t, "mom@example.com", decoded.To)
	require.Equal(t, "EMERGENCY ALERT: Anna needs help!", decoded.Subject)
	require.Equal(t, "https://www.google.com/maps?q=40,-73", decoded.MapsLink)
	require.Equal(t, "NYC", decoded.City)
	require.Contains(t, decoded.Text, "Detected area: NYC")
}

func TestSend_FailuresAreRejections(t *testing.T) {
	t.Parallel()

	publishFailed := newTransport(&fakeConn{publishErr: nats.ErrConnectionClosed}, "")

	result, err := publishFailed.Send(context.Background(), "mom@example.com", payload())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "publish")

	flushFailed := newTransport(&fakeConn{flushErr: errors.New("timeout")}, "")

	result, err = flushFailed.Send(context.Background(), "mom@example.com", payload())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "flush")
}

func TestSubject(t *testing.T) {
	t.Parallel()

	transport := newTransport(new(fakeConn), "")
	require.Equal(t, DefaultSubjectPrefix+".abc", transport.subject("abc"))
	require.Equal(t, DefaultSubjectPrefix, transport.subject(""))
}
