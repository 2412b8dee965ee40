// handlers/user_routes.go
package handlers

import (
	"speech-practice/middleware"
	"speech-practice/services"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

func SetupUserRoutes(router fiber.Router, users *services.UserService, requireUser fiber.Handler) {
	me := router.Group("/users/me", requireUser)

	me.Get("/", func(c *fiber.Ctx) error {
		profile, err := users.GetProfile(c.UserContext(), middleware.UserID(c), c.QueryBool("include_stats", true))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(profile)
	})

	me.Put("/", func(c *fiber.Ctx) error {
		var req updateProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		user, err := users.UpdateProfile(c.UserContext(), middleware.UserID(c), req.Name, req.AvatarURL)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(user)
	})

	me.Delete("/", func(c *fiber.Ctx) error {
		deletedAt, err := users.DeleteAccount(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "account deleted", "deleted_at": deletedAt})
	})
}
