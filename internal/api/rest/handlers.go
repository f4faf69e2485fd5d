package rest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/version"
)

// Service is the business API the HTTP layer depends on.
type Service interface {
	SendAlert(ctx context.Context, userID string, location sos.Coordinate) (*sos.AlertReport, error)
	GetContacts(ctx context.Context, userID string) (*sos.User, error)
	LastLocation(ctx context.Context, userID string) (sos.Coordinate, error)
}

type handlers struct {
	// service executes the requests.
	service Service
	// startedAt is used for the uptime in /health.
	startedAt time.Time
}

func (h *handlers) sendAlert(c *fiber.Ctx) error {
	var req sendAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", sos.ErrInvalidInput)
	}

	userID := strings.TrimSpace(req.UserID)

	coordinate, ok := req.toCoordinate()
	if userID == "" || !ok {
		return fmt.Errorf("%w: User ID and location coordinates are required", sos.ErrInvalidInput)
	}

	switch coordinate.Source {
	case "", sos.SourceGPS, sos.SourceIP:
	default:
		return fmt.Errorf("%w: unknown location source %q", sos.ErrInvalidInput, req.Source)
	}

	report, err := h.service.SendAlert(c.UserContext(), userID, coordinate)
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if report.Status == sos.StatusNoneSent {
		status = fiber.StatusInternalServerError
	}

	return c.Status(status).JSON(toAlertResponse(report))
}

func (h *handlers) getContacts(c *fiber.Ctx) error {
	user, err := h.service.GetContacts(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}

	return c.JSON(toContactsResponse(user))
}

func (h *handlers) getLocation(c *fiber.Ctx) error {
	userID := c.Params("userId")

	coordinate, err := h.service.LastLocation(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(locationResponse{
		UserID:   userID,
		Location: toLocationDTO(coordinate),
		MapsLink: coordinate.MapsLink(),
	})
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"version": version.Short(),
	})
}
