//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/sos-beacon/internal/api/grpc/sos"
	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

// Client wraps the SOSService gRPC API with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the alert server.
	conn *grpc.ClientConn

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// device is attached to every call as metadata.
	device Device
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithDevice attaches the device identity to every call.
func WithDevice(device Device) Option {
	return func(c *Client) {
		c.device = device
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errUserRequired is returned when a call names no user.
	errUserRequired = errors.New("user id must be provided")
)

// Dial creates a gRPC client for the alert server. The connection is
// established lazily on the first call.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial alert server: %w", err)
	}

	return newClient(conn, opts...), nil
}

func newClient(conn *grpc.ClientConn, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// SendAlert asks the server to dispatch an alert and returns its report.
// The call timeout does not apply: a dispatch lasts as long as its slowest
// sends, and a client deadline would cancel the fan-out half way. Bound the
// call through ctx instead.
func (c *Client) SendAlert(ctx context.Context, userID string, location sos.Coordinate) (*sos.AlertReport, error) {
	if userID == "" {
		return nil, errUserRequired
	}

	callCtx, cancel := context.WithCancel(c.device.AppendToOutgoing(ctx))
	defer cancel()

	response := new(structpb.Struct)
	if err := c.conn.Invoke(callCtx, api.FullMethodSendAlert, api.EncodeAlertRequest(userID, location), response); err != nil {
		return nil, fmt.Errorf("send alert: %w", fromStatus(err))
	}

	report, err := api.DecodeReport(response)
	if err != nil {
		return nil, fmt.Errorf("send alert: %w", err)
	}

	return report, nil
}

// GetContacts retrieves the contact snapshot of a user.
func (c *Client) GetContacts(ctx context.Context, userID string) (*sos.User, error) {
	if userID == "" {
		return nil, errUserRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response := new(structpb.Struct)
	if err := c.conn.Invoke(callCtx, api.FullMethodGetContacts, api.EncodeUserRequest(userID), response); err != nil {
		return nil, fmt.Errorf("get contacts: %w", fromStatus(err))
	}

	return api.DecodeUser(response), nil
}

// IsUnavailable reports whether err means the server could not be reached,
// which is the only case worth retrying an alert for. DeadlineExceeded is
// not included: the server may already have notified some contacts.
func IsUnavailable(err error) bool {
	var statusErr interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &statusErr) {
		return false
	}

	return statusErr.GRPCStatus().Code() == codes.Unavailable
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = c.device.AppendToOutgoing(ctx)

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// fromStatus attaches the matching domain sentinel to well-known status codes.
func fromStatus(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument:
		return errors.Join(sos.ErrInvalidInput, err)
	case codes.NotFound:
		return errors.Join(sos.ErrUserNotFound, err)
	case codes.FailedPrecondition:
		return errors.Join(sos.ErrNoContacts, err)
	default:
		return err
	}
}
