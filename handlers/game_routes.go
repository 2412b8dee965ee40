// handlers/game_routes.go
package handlers

import (
	"speech-practice/middleware"
	"speech-practice/models"
	"speech-practice/services"

	"github.com/gofiber/fiber/v2"
)

type completeSessionRequest struct {
	Results []services.ResultInput `json:"results"`
}

// SetupGameRoutes mounts the learner gameplay API. Every route needs a user.
func SetupGameRoutes(router fiber.Router, games *services.GameService, speeches *services.SpeechService, requireUser fiber.Handler) {
	g := router.Group("/game", requireUser)

	g.Post("/speeches/random", func(c *fiber.Ctx) error {
		var f services.RandomSpeechFilter
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&f); err != nil {
				return badRequest(c, "invalid request body")
			}
		}
		list, err := speeches.GetRandomSpeeches(c.UserContext(), f)
		if err != nil {
			return respondError(c, err)
		}
		if err := signAudioURLs(c, speeches, list); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"speeches": list, "count": len(list)})
	})

	g.Post("/sessions", func(c *fiber.Ctx) error {
		var in services.CreateSessionInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request body")
		}
		session, err := games.CreateSession(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	g.Put("/sessions/:id/complete", func(c *fiber.Ctx) error {
		var req completeSessionRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		session, err := games.CompleteSession(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Results)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(session)
	})

	g.Get("/sessions/:id", func(c *fiber.Ctx) error {
		session, err := games.GetSession(c.UserContext(), middleware.UserID(c), c.Params("id"), c.QueryBool("include_results", true))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(session)
	})

	g.Get("/sessions", func(c *fiber.Ctx) error {
		f := services.ListSessionsFilter{
			Mode:   models.GameMode(c.Query("mode")),
			Level:  models.Level(c.Query("level")),
			Limit:  c.QueryInt("limit", 0),
			Offset: c.QueryInt("offset", 0),
		}
		sessions, err := games.ListSessions(c.UserContext(), middleware.UserID(c), f)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"sessions": sessions, "count": len(sessions)})
	})
}

// signAudioURLs swaps bucket URLs for short-lived signed ones in place.
func signAudioURLs(c *fiber.Ctx, speeches *services.SpeechService, list []models.Speech) error {
	for i := range list {
		url, err := speeches.PlaybackURL(c.UserContext(), &list[i])
		if err != nil {
			return err
		}
		list[i].AudioURL = url
	}
	return nil
}
