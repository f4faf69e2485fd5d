package locator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/metrics"
)

// ErrSuperseded is returned by an attempt that was replaced by a newer one
// or cancelled through Resolver.Cancel. Its result is discarded.
var ErrSuperseded = errors.New("location attempt superseded")

var errProvidersExhausted = errors.New("all IP providers failed")

const (
	defaultGPSTimeout      = 10 * time.Second
	defaultProviderTimeout = 5 * time.Second
)

// StateKind enumerates the cascade states.
type StateKind int

const (
	// StateIdle is the state before the first step.
	StateIdle StateKind = iota
	// StateAwaitingGPS waits for the single GPS query.
	StateAwaitingGPS
	// StateAwaitingIP waits for the provider at State.Index.
	StateAwaitingIP
	// StateResolved is terminal with a coordinate.
	StateResolved
	// StateFailed is terminal with a LocationError.
	StateFailed
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateAwaitingGPS:
		return "awaiting_gps"
	case StateAwaitingIP:
		return "awaiting_ip"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(k))
	}
}

// State is one position of the cascade.
type State struct {
	// Kind is the state tag.
	Kind StateKind
	// Index is the provider being queried in StateAwaitingIP.
	Index int
	// Coordinate is set in StateResolved.
	Coordinate sos.Coordinate
	// Err is the last failure, a *sos.LocationError in StateFailed.
	Err error
}

// Terminal reports whether the cascade has finished.
func (s State) Terminal() bool {
	return s.Kind == StateResolved || s.Kind == StateFailed
}

// Resolver runs the location cascade. It is safe for concurrent use, but only
// the most recent attempt may publish a result.
type Resolver struct {
	// gps is queried once per attempt; nil means unsupported.
	gps GPSSource
	// providers are IP geolocation endpoints in cascade order.
	providers []string
	// querier talks to the providers.
	querier Querier
	// gpsTimeout bounds the GPS query.
	gpsTimeout time.Duration
	// providerTimeout bounds each provider query.
	providerTimeout time.Duration
	// now stamps coordinates that come without a time.
	now func() time.Time

	mu sync.Mutex
	// generation identifies the current attempt.
	generation uint64
	// cancel aborts the current attempt.
	cancel context.CancelFunc
	// latest is the result of the last attempt that was not superseded.
	latest *sos.Coordinate
}

// Option configures the resolver.
type Option func(*Resolver)

// WithGPS sets the GPS source.
func WithGPS(source GPSSource) Option {
	return func(r *Resolver) {
		r.gps = source
	}
}

// WithProviders sets the ordered provider endpoints.
func WithProviders(endpoints ...string) Option {
	return func(r *Resolver) {
		r.providers = append([]string(nil), endpoints...)
	}
}

// WithQuerier replaces the HTTP provider client.
func WithQuerier(querier Querier) Option {
	return func(r *Resolver) {
		if querier != nil {
			r.querier = querier
		}
	}
}

// WithGPSTimeout bounds the GPS query.
func WithGPSTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.gpsTimeout = timeout
		}
	}
}

// WithProviderTimeout bounds each provider query.
func WithProviderTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.providerTimeout = timeout
		}
	}
}

// WithClock replaces the clock.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a resolver. Without WithGPS the GPS step always fails as unsupported.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		querier:         NewHTTPProvider(nil),
		gpsTimeout:      defaultGPSTimeout,
		providerTimeout: defaultProviderTimeout,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve runs a new attempt and cancels the previous one. It returns the
// coordinate, a *sos.LocationError when every source failed, or ErrSuperseded
// when a newer attempt started before this one finished.
func (r *Resolver) Resolve(ctx context.Context) (sos.Coordinate, error) {
	attemptCtx, generation := r.begin(ctx)
	defer r.end(generation)

	attemptCtx = logger.WithKV(attemptCtx, "attempt", generation)

	state := State{Kind: StateIdle}
	for !state.Terminal() {
		if !r.current(generation) {
			break
		}

		if err := attemptCtx.Err(); err != nil {
			state = State{Kind: StateFailed, Err: fmt.Errorf("resolve location: %w", err)}
			break
		}

		state = r.Next(attemptCtx, state)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generation != generation {
		metrics.LocationResolutions.WithLabelValues("superseded").Inc()
		logger.DebugKV(attemptCtx, "Location attempt superseded", "state", state.Kind)

		return sos.Coordinate{}, ErrSuperseded
	}

	if state.Kind == StateFailed {
		metrics.LocationResolutions.WithLabelValues("failed").Inc()
		logger.WarnKV(attemptCtx, "Location unavailable", "error", state.Err)

		return sos.Coordinate{}, state.Err
	}

	coordinate := state.Coordinate
	r.latest = &coordinate

	metrics.LocationResolutions.WithLabelValues(string(coordinate.Source)).Inc()
	logger.InfoKV(attemptCtx, "Location resolved",
		"source", coordinate.Source,
		"location", coordinate.String(),
		"accuracy", coordinate.Accuracy,
		"city", coordinate.City,
	)

	return coordinate, nil
}

// Cancel abandons the in-flight attempt, if any. The attempt returns ErrSuperseded.
func (r *Resolver) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Latest returns the result of the most recent attempt that was not superseded.
func (r *Resolver) Latest() (sos.Coordinate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.latest == nil {
		return sos.Coordinate{}, false
	}

	return *r.latest, true
}

func (r *Resolver) begin(ctx context.Context) (context.Context, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	r.generation++

	attemptCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	return attemptCtx, r.generation
}

func (r *Resolver) end(generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generation == generation && r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Resolver) current(generation uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.generation == generation
}

// Next is the transition function of the cascade. Terminal states are
// returned unchanged.
func (r *Resolver) Next(ctx context.Context, state State) State {
	switch state.Kind {
	case StateIdle:
		return State{Kind: StateAwaitingGPS}
	case StateAwaitingGPS:
		coordinate, err := r.queryGPS(ctx)
		if err != nil {
			logger.WarnKV(ctx, "GPS query failed, falling back to IP providers", "error", err)
			return State{Kind: StateAwaitingIP, Index: 0, Err: err}
		}

		return State{Kind: StateResolved, Coordinate: coordinate}
	case StateAwaitingIP:
		if state.Index >= len(r.providers) {
			failure := &sos.LocationError{
				Reason: sos.ReasonProviderExhausted,
				Err:    errors.Join(state.Err, errProvidersExhausted),
			}

			var classified *sos.LocationError
			if errors.As(state.Err, &classified) {
				failure.Cause = classified.Reason
			}

			return State{Kind: StateFailed, Err: failure}
		}

		endpoint := r.providers[state.Index]

		coordinate, err := r.queryProvider(ctx, endpoint)
		if err != nil {
			metrics.ProviderFailures.WithLabelValues(providerLabel(endpoint)).Inc()
			logger.WarnKV(ctx, "IP provider failed", "provider", endpoint, "error", err)

			return State{Kind: StateAwaitingIP, Index: state.Index + 1, Err: keepClassified(state.Err, err)}
		}

		return State{Kind: StateResolved, Coordinate: coordinate}
	default:
		return state
	}
}

func (r *Resolver) queryGPS(ctx context.Context) (sos.Coordinate, error) {
	if r.gps == nil {
		return sos.Coordinate{}, &sos.LocationError{Reason: sos.ReasonUnsupported}
	}

	gpsCtx, cancel := context.WithTimeout(ctx, r.gpsTimeout)
	defer cancel()

	coordinate, err := r.gps.Query(gpsCtx)
	if err != nil {
		return sos.Coordinate{}, classifyGPSError(gpsCtx, err)
	}

	if err = coordinate.Validate(); err != nil {
		return sos.Coordinate{}, &sos.LocationError{Reason: sos.ReasonPositionUnavailable, Err: err}
	}

	coordinate.Source = sos.SourceGPS
	coordinate.City = ""

	if coordinate.ResolvedAt.IsZero() {
		coordinate.ResolvedAt = r.now().UTC()
	}

	return coordinate, nil
}

func (r *Resolver) queryProvider(ctx context.Context, endpoint string) (sos.Coordinate, error) {
	providerCtx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()

	coordinate, err := r.querier.Query(providerCtx, endpoint)
	if err != nil {
		return sos.Coordinate{}, err
	}

	if err = coordinate.Validate(); err != nil {
		return sos.Coordinate{}, err
	}

	coordinate.Source = sos.SourceIP
	coordinate.Accuracy = sos.IPAccuracyMeters

	if coordinate.ResolvedAt.IsZero() {
		coordinate.ResolvedAt = r.now().UTC()
	}

	return coordinate, nil
}

// keepClassified keeps the GPS classification in the chain next to the
// latest provider error.
func keepClassified(previous, latest error) error {
	var classified *sos.LocationError
	if errors.As(previous, &classified) {
		return errors.Join(classified, latest)
	}

	return latest
}

// providerLabel reduces an endpoint to its host for metric labels.
func providerLabel(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return "invalid"
	}

	return parsed.Host
}
