// handlers/auth_routes.go
package handlers

import (
	"speech-practice/middleware"
	"speech-practice/models"
	"speech-practice/services"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type socialTokenRequest struct {
	Provider    models.AuthProvider `json:"provider"`
	AccessToken string              `json:"access_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SetupAuthRoutes mounts the public account endpoints. /social trusts an
// identity the gateway already verified; /social/token verifies the provider
// token itself.
func SetupAuthRoutes(router fiber.Router, auth *services.AuthService, gatewayToken string) {
	g := router.Group("/auth")

	g.Post("/register", func(c *fiber.Ctx) error {
		var req registerRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		res, err := auth.Register(c.UserContext(), req.Email, req.Password, req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	g.Post("/login", func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		res, err := auth.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	g.Post("/refresh", func(c *fiber.Ctx) error {
		var req refreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return badRequest(c, "refresh_token is required")
		}
		res, err := auth.Refresh(c.UserContext(), req.RefreshToken)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	g.Post("/social", middleware.GatewayAuthMiddleware(gatewayToken), func(c *fiber.Ctx) error {
		var req services.SocialIdentity
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		res, err := auth.SocialLogin(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}
		status := fiber.StatusOK
		if res.Created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(res)
	})
	g.Post("/social/token", func(c *fiber.Ctx) error {
		var req socialTokenRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		res, err := auth.SocialLoginWithToken(c.UserContext(), req.Provider, req.AccessToken)
		if err != nil {
			return respondError(c, err)
		}
		status := fiber.StatusOK
		if res.Created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(res)
	})
}
