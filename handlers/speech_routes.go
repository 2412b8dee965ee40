// handlers/speech_routes.go
package handlers

import (
	"io"
	"mime/multipart"

	"speech-practice/services"

	"github.com/gofiber/fiber/v2"
)

// SetupSpeechRoutes mounts pronunciation scoring. The request is multipart
// with an "audio" file and a "reference_text" field.
func SetupSpeechRoutes(router fiber.Router, scoring *services.ScoringService, requireUser fiber.Handler) {
	router.Post("/speech/score", requireUser, func(c *fiber.Ctx) error {
		fh, err := c.FormFile("audio")
		if err != nil {
			return badRequest(c, "audio file is required")
		}
		data, err := readUpload(fh)
		if err != nil {
			return badRequest(c, "could not read audio file")
		}

		res, err := scoring.Score(c.UserContext(), data, fh.Header.Get(fiber.HeaderContentType), c.FormValue("reference_text"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
