// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ServiceTokenHeader carries the shared secret of the upstream gateway that
// verified a social login before forwarding it.
const ServiceTokenHeader = "X-Service-Token"

// GatewayAuthMiddleware only lets requests carrying the gateway's service
// token through. With no token configured every request is refused.
func GatewayAuthMiddleware(expectedToken string) fiber.Handler {
	if expectedToken == "" {
		log.Println("⚠️  GATEWAY_SERVICE_TOKEN is not set, social login is disabled")
	}

	return func(c *fiber.Ctx) error {
		if expectedToken == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "social login is not configured",
			})
		}

		token := strings.TrimSpace(c.Get(ServiceTokenHeader))
		if token == "" {
			log.Printf("🚫 [GATEWAY_AUTH] Missing service token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Printf("❌ [GATEWAY_AUTH] Invalid service token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}

		return c.Next()
	}
}
