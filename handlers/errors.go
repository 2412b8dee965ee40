// handlers/errors.go
package handlers

import (
	"errors"
	"log"

	"speech-practice/pronunciation"
	"speech-practice/services"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindConflict:
		return fiber.StatusConflict
	case services.KindUnauthorized:
		return fiber.StatusUnauthorized
	case services.KindProcessingFailure:
		if errors.Is(err, pronunciation.ErrNoSpeech) {
			return fiber.StatusUnprocessableEntity
		}
		return fiber.StatusBadGateway
	case services.KindStorageFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError renders {"error", "details"}. Internal causes are logged, not
// returned.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	var se *services.Error
	if !errors.As(err, &se) {
		log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}

	body := fiber.Map{"error": se.Message}
	if len(se.Issues) > 0 {
		body["details"] = se.Issues
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string, details ...string) error {
	return respondError(c, services.Validation(msg, details...))
}
