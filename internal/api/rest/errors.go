package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var fiberErr *fiber.Error

	switch {
	case errors.Is(err, sos.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, sos.ErrUserNotFound),
		errors.Is(err, sos.ErrNoContacts),
		errors.Is(err, sos.ErrLocationUnavailable):
		return fiber.StatusNotFound
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	default:
		return fiber.StatusInternalServerError
	}
}

// messageFor returns the client-facing text. Internal errors are not echoed.
func messageFor(err error, status int) string {
	switch {
	case errors.Is(err, sos.ErrNoContacts):
		return "No emergency contacts found. Please add emergency contacts in your profile."
	case errors.Is(err, sos.ErrUserNotFound):
		return "User not found"
	case status == fiber.StatusInternalServerError:
		return "Server error while processing the request"
	default:
		return err.Error()
	}
}

// errorHandler renders every error returned by a handler as JSON.
func errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	requestID, _ := c.Locals("requestid").(string) //nolint:errcheck // Missing id is rendered empty.

	if status >= fiber.StatusInternalServerError {
		logger.ErrorKV(c.UserContext(), "Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", requestID,
			"error", err,
		)
	}

	return c.Status(status).JSON(errorResponse{
		Message:   messageFor(err, status),
		RequestID: requestID,
	})
}
