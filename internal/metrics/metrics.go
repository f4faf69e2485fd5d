// Package metrics holds the Prometheus collectors of the alert server and the
// fiber glue that records HTTP traffic and serves /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "sos"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	// DispatchTotal counts finished dispatches by overall status or error kind.
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_total",
		Help:      "Total SOS dispatches by outcome",
	}, []string{"status"})

	// DeliveryTotal counts individual notification attempts.
	DeliveryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_total",
		Help:      "Total notification attempts by result",
	}, []string{"result"})

	// DispatchDuration observes the wall time of a whole fan-out.
	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of SOS fan-out to all contacts",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	// LocationResolutions counts successful resolutions by source and failures.
	LocationResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "location",
		Name:      "resolutions_total",
		Help:      "Location resolutions by source (gps, ip, failed, superseded)",
	}, []string{"source"})

	// ProviderFailures counts failed IP provider queries.
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "location",
		Name:      "provider_failures_total",
		Help:      "Failed IP geolocation provider queries",
	}, []string{"provider"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Render errors here so the recorded status is the one the client gets.
		if err := c.Next(); err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError) //nolint:errcheck // Best effort.
			}
		}

		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}

		status := strconv.Itoa(c.Response().StatusCode())
		httpRequestsTotal.WithLabelValues(c.Method(), path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())

		return nil
	}
}

// Handler returns a fiber handler serving the Prometheus registry.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())

	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
