// handlers/health.go
package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const checkTimeout = 5 * time.Second

// Checker probes one dependency for /readyz.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// SetupHealthRoutes mounts /healthz (always ok while serving) and /readyz
// (ok only when every checker passes).
func SetupHealthRoutes(app fiber.Router, checkers ...Checker) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(healthResult{Status: "ok"})
	})

	app.Get("/readyz", func(c *fiber.Ctx) error {
		checks := make(map[string]string, len(checkers))
		allOK := true
		for _, ch := range checkers {
			ctx, cancel := context.WithTimeout(c.UserContext(), checkTimeout)
			err := ch.Check(ctx)
			cancel()
			if err != nil {
				checks[ch.Name] = "fail: " + err.Error()
				allOK = false
			} else {
				checks[ch.Name] = "ok"
			}
		}

		if !allOK {
			return c.Status(fiber.StatusServiceUnavailable).JSON(healthResult{Status: "fail", Checks: checks})
		}
		return c.JSON(healthResult{Status: "ok", Checks: checks})
	})
}
