package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/oshokin/sos-beacon/internal/metrics"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 60 * time.Second
	bodyLimit    = 64 * 1024
)

// NewApp builds the fiber application with all routes registered.
func NewApp(service Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "sos-server",
		DisableStartupMessage: true,
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		BodyLimit:             bodyLimit,
		ErrorHandler:          errorHandler,
	})

	h := &handlers{
		service:   service,
		startedAt: time.Now(),
	}

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(metrics.Middleware())

	app.Get("/metrics", metrics.Handler())
	app.Get("/health", h.health)

	group := app.Group("/sos")
	group.Post("/send", h.sendAlert)
	group.Get("/contacts/:userId", h.getContacts)
	group.Get("/location/:userId", h.getLocation)

	return app
}
