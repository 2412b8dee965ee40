// middleware/admin.go
package middleware

import (
	"crypto/subtle"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthMiddleware protects the admin surface with HTTP basic auth checked
// against a bcrypt hash. An empty hash locks the admin surface.
func AdminAuthMiddleware(username, passwordHash string) fiber.Handler {
	if passwordHash == "" {
		log.Println("⚠️  ADMIN_PASSWORD_HASH is not set, admin routes are locked")
	}

	return basicauth.New(basicauth.Config{
		Realm: "speech-practice admin",
		Authorizer: func(user, pass string) bool {
			if passwordHash == "" {
				return false
			}
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passOK := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pass)) == nil
			if !userOK || !passOK {
				log.Printf("🚫 [ADMIN_AUTH] Failed admin login for %q", user)
				return false
			}
			return true
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="speech-practice admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "admin authentication required",
			})
		},
	})
}
