package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/metrics"
)

// Directory returns the contact snapshot of a user.
// Unknown users must be reported with sos.ErrUserNotFound.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*sos.User, error)
}

// Transport delivers one alert to one address. It must be safe for
// concurrent use and report ordinary delivery failures through SendResult.
type Transport interface {
	Send(ctx context.Context, address string, payload sos.AlertPayload) (sos.SendResult, error)
}

// Dispatcher turns "user X triggered SOS at coordinate C" into a report.
type Dispatcher struct {
	// directory resolves users to their contacts.
	directory Directory
	// transport delivers notifications.
	transport Transport
	// concurrency bounds parallel sends within one dispatch.
	concurrency int
	// sendTimeout bounds one send.
	sendTimeout time.Duration
	// now is the clock used for report timestamps.
	now func() time.Time
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

const (
	defaultConcurrency = 8
	defaultSendTimeout = 15 * time.Second
)

// WithConcurrency bounds the number of parallel sends. One means sequential.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithSendTimeout bounds a single send.
func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// WithClock replaces the clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates a dispatcher over the given directory and transport.
func New(directory Directory, transport Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		directory:   directory,
		transport:   transport,
		concurrency: defaultConcurrency,
		sendTimeout: defaultSendTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch notifies every contact of the user about the coordinate.
//
// It fails with sos.ErrInvalidInput, sos.ErrUserNotFound or sos.ErrNoContacts
// before any notification is attempted. Once contacts are known a report is
// always returned, including when no contact could be reached.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, location sos.Coordinate) (*sos.AlertReport, error) {
	report, err := d.dispatch(ctx, userID, location)
	if err != nil {
		metrics.DispatchTotal.WithLabelValues(errorLabel(err)).Inc()
		return nil, err
	}

	metrics.DispatchTotal.WithLabelValues(string(report.Status)).Inc()

	return report, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, userID string, location sos.Coordinate) (*sos.AlertReport, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", sos.ErrInvalidInput)
	}

	if err := location.Validate(); err != nil {
		return nil, err
	}

	dispatchID := uuid.NewString()
	ctx = logger.WithKV(ctx, "dispatch_id", dispatchID, "user_id", userID)

	user, err := d.directory.Lookup(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user %q: %w", userID, err)
	}

	if user == nil {
		return nil, fmt.Errorf("lookup user %q: %w", userID, sos.ErrUserNotFound)
	}

	// Work on a private copy so concurrent directory edits are not observed.
	snapshot := user.Clone()
	if len(snapshot.Contacts) == 0 {
		return nil, fmt.Errorf("user %q: %w", userID, sos.ErrNoContacts)
	}

	issuedAt := d.now().UTC()
	payload := sos.AlertPayload{
		DispatchID: dispatchID,
		UserName:   displayName(snapshot),
		Location:   location,
		IssuedAt:   issuedAt,
	}

	logger.InfoKV(ctx, "Dispatching SOS alert", "contacts", len(snapshot.Contacts), "location", location.String())

	started := time.Now()
	outcomes := d.fanOut(ctx, snapshot.Contacts, payload)
	metrics.DispatchDuration.Observe(time.Since(started).Seconds())

	report, err := sos.NewReport(dispatchID, location, outcomes, issuedAt)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "SOS alert dispatched",
		"status", report.Status,
		"sent", report.SentCount,
		"failed", len(report.Failures),
		"total", report.TotalContacts,
	)

	return report, nil
}

// fanOut sends the payload to every contact and returns outcomes in contact
// order. Each goroutine owns one slot of the result slice, so no locking is needed.
func (d *Dispatcher) fanOut(ctx context.Context, contacts []sos.Contact, payload sos.AlertPayload) []sos.DeliveryOutcome {
	outcomes := make([]sos.DeliveryOutcome, len(contacts))

	var group errgroup.Group

	group.SetLimit(d.concurrency)

	for i, contact := range contacts {
		group.Go(func() error {
			outcomes[i] = d.deliver(ctx, contact, payload)
			return nil
		})
	}

	_ = group.Wait() //nolint:errcheck // deliver never returns an error.

	return outcomes
}

// deliver performs one isolated send. Transport errors, rejections and panics
// all end up as a failed outcome.
func (d *Dispatcher) deliver(ctx context.Context, contact sos.Contact, payload sos.AlertPayload) (outcome sos.DeliveryOutcome) {
	outcome = sos.DeliveryOutcome{
		Contact: contact,
		Status:  sos.DeliveryFailed,
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = sos.DeliveryFailed
			outcome.Reference = ""
			outcome.Error = fmt.Sprintf("transport panic: %v", r)
		}

		metrics.DeliveryTotal.WithLabelValues(string(outcome.Status)).Inc()

		if outcome.Status == sos.DeliveryFailed {
			logger.WarnKV(ctx, "Notification failed", "address", contact.Address, "error", outcome.Error)
		} else {
			logger.DebugKV(ctx, "Notification sent", "address", contact.Address, "reference", outcome.Reference)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	result, err := d.transport.Send(sendCtx, contact.Address, payload)

	switch {
	case err != nil:
		outcome.Error = err.Error()
	case !result.Success:
		outcome.Error = result.Error
		if outcome.Error == "" {
			outcome.Error = "delivery rejected"
		}
	default:
		outcome.Status = sos.DeliverySent
		outcome.Reference = result.Reference
	}

	return outcome
}

// displayName falls back to the id for users without a name.
func displayName(user *sos.User) string {
	if name := strings.TrimSpace(user.Name); name != "" {
		return name
	}

	return user.ID
}

// errorLabel maps dispatch errors to a bounded metric label set.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, sos.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, sos.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, sos.ErrNoContacts):
		return "no_contacts"
	default:
		return "error"
	}
}
