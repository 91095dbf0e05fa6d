package handlers

import (
	"errors"
	"log/slog"

	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/dto"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/identity"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/services"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, errs.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errs.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, errs.ErrDependency):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the error body. Server-side failures are logged and
// reported to Sentry; their details never reach the client.
func respondError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	message := errs.Message(err)

	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", requestID(c),
			"action", c.Method()+" "+c.Route().Path,
			"error", errs.Loggable(err),
		)
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		message = "Internal server error"
		if code == fiber.StatusServiceUnavailable {
			message = "A backing service is unavailable, please retry"
		}
	}

	return c.Status(code).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

// parseBody decodes and validates a JSON request body.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return errs.New(errs.ErrValidation, "Invalid request body")
	}
	return dto.Validate(req)
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, errs.New(errs.ErrValidation, "Invalid "+name)
	}
	return id, nil
}

func actorFrom(c *fiber.Ctx) (identity.Actor, bool) {
	actor, err := identity.GetActor(c)
	if err != nil {
		return identity.Actor{}, false
	}
	return actor, true
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
