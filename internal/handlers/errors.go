package handlers

import (
	"errors"

	"gigauth/internal/metrics"
	"gigauth/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// statusFor maps an error kind onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrConflict):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	}
	return "internal"
}

// message is the client-facing summary of err.
func message(err error) string {
	var dup *models.DuplicateError
	switch {
	case errors.As(err, &dup):
		switch dup.Field {
		case "email":
			return "Email already exists"
		case "phone":
			return "Phone number already exists"
		}
		return "Duplicate value"
	case errors.Is(err, models.ErrInvalidEmail):
		return "Invalid email format"
	case errors.Is(err, models.ErrInvalidInput):
		return "Validation failed"
	case errors.Is(err, models.ErrMissingToken):
		return "No token provided"
	case errors.Is(err, models.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, models.ErrInvalidToken), errors.Is(err, models.ErrTokenNotFound):
		return "Invalid token"
	case errors.Is(err, models.ErrInvalidCredentials):
		return "Incorrect password"
	case errors.Is(err, models.ErrNotFound):
		return "User not found"
	}
	return "Internal server error"
}

// ErrorResponder renders service errors as JSON. Internal errors are logged with their
// cause and returned to the client without it.
type ErrorResponder struct {
	logger zerolog.Logger
}

// NewErrorResponder creates an ErrorResponder.
func NewErrorResponder(logger zerolog.Logger) *ErrorResponder {
	return &ErrorResponder{logger: logger}
}

// Respond writes the error response for err.
func (r *ErrorResponder) Respond(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	body := fiber.Map{"msg": message(err)}

	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		body["errors"] = verr.Map()
	case status == fiber.StatusInternalServerError:
		r.logger.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("unhandled error")
	default:
		body["error"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

// Guard is a middleware-facing variant of Respond that also records the failed operation.
func (r *ErrorResponder) Guard(operation string) func(*fiber.Ctx, error) error {
	return func(c *fiber.Ctx, err error) error {
		metrics.AuthOperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
		return r.Respond(c, err)
	}
}
