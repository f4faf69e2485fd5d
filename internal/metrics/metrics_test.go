package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRenderedStatus(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Use(Middleware())
	app.Get("/metrics", Handler())
	app.Get("/boom/:id", func(*fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/boom/:id", "418"))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom/1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTeapot, resp.StatusCode)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/boom/:id", "418"))
	require.Equal(t, before+1, after)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "sos_http_requests_total")
}
