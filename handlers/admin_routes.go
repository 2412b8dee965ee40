// handlers/admin_routes.go
package handlers

import (
	"speech-practice/models"
	"speech-practice/services"

	"github.com/gofiber/fiber/v2"
)

type AdminServices struct {
	Speeches *services.SpeechService
	Tags     *services.TagService
	Imports  *services.ImportService
}

type tagRequest struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
}

// SetupAdminRoutes mounts content management and bulk import behind the
// admin guard.
func SetupAdminRoutes(router fiber.Router, svc AdminServices, requireAdmin fiber.Handler) {
	admin := router.Group("/admin", requireAdmin)

	// Speeches
	admin.Get("/speeches", func(c *fiber.Ctx) error {
		page, err := svc.Speeches.ListSpeeches(c.UserContext(), services.SpeechListFilter{
			Level:    models.Level(c.Query("level")),
			Type:     models.SpeechType(c.Query("type")),
			TagID:    c.Query("tag_id"),
			Search:   c.Query("search"),
			Page:     c.QueryInt("page", 1),
			PageSize: c.QueryInt("page_size", 0),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(page)
	})

	admin.Get("/speeches/search", func(c *fiber.Ctx) error {
		list, err := svc.Speeches.SearchSpeeches(c.UserContext(), c.Query("q"), models.Level(c.Query("level")), c.QueryInt("limit", 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"speeches": list, "count": len(list)})
	})

	admin.Get("/speeches/:id", func(c *fiber.Ctx) error {
		sp, err := svc.Speeches.GetSpeech(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		playback, err := svc.Speeches.PlaybackURL(c.UserContext(), sp)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"speech": sp, "playback_url": playback})
	})

	admin.Post("/speeches", func(c *fiber.Ctx) error {
		var in services.SpeechInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request body")
		}
		sp, err := svc.Speeches.CreateSpeech(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sp)
	})

	admin.Put("/speeches/:id", func(c *fiber.Ctx) error {
		var in services.SpeechUpdate
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request body")
		}
		sp, err := svc.Speeches.UpdateSpeech(c.UserContext(), c.Params("id"), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(sp)
	})

	admin.Delete("/speeches/:id", func(c *fiber.Ctx) error {
		if err := svc.Speeches.DeleteSpeech(c.UserContext(), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin.Post("/speeches/audio", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "file is required")
		}
		data, err := readUpload(fh)
		if err != nil {
			return badRequest(c, "could not read file")
		}
		url, err := svc.Speeches.UploadSpeechAudio(c.UserContext(), fh.Filename, data)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"audio_url": url})
	})

	// Tags
	admin.Get("/tags", func(c *fiber.Ctx) error {
		page, err := svc.Tags.ListTags(c.UserContext(), services.TagFilter{
			Category: c.Query("category"),
			Search:   c.Query("search"),
			Page:     c.QueryInt("page", 1),
			PageSize: c.QueryInt("page_size", 0),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(page)
	})

	admin.Get("/tags/:id", func(c *fiber.Ctx) error {
		tag, err := svc.Tags.GetTag(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(tag)
	})

	admin.Post("/tags", func(c *fiber.Ctx) error {
		var req tagRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		tag, err := svc.Tags.CreateTag(c.UserContext(), deref(req.Name), deref(req.Category))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(tag)
	})

	admin.Put("/tags/:id", func(c *fiber.Ctx) error {
		var req tagRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		tag, err := svc.Tags.UpdateTag(c.UserContext(), c.Params("id"), req.Name, req.Category)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(tag)
	})

	admin.Delete("/tags/:id", func(c *fiber.Ctx) error {
		if err := svc.Tags.DeleteTag(c.UserContext(), c.Params("id"), c.QueryBool("force", false)); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Bulk import
	admin.Post("/import/audio", func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return badRequest(c, "multipart form with files is required")
		}
		headers := form.File["files"]
		files := make([]services.AudioFile, 0, len(headers))
		for _, fh := range headers {
			data, err := readUpload(fh)
			if err != nil {
				return badRequest(c, "could not read "+fh.Filename)
			}
			files = append(files, services.AudioFile{Filename: fh.Filename, Data: data})
		}
		res, err := svc.Imports.UploadAudioFiles(c.UserContext(), files)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	admin.Post("/import/archive", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("archive")
		if err != nil {
			return badRequest(c, "archive file is required")
		}
		data, err := readUpload(fh)
		if err != nil {
			return badRequest(c, "could not read archive")
		}
		res, err := svc.Imports.UploadAudioArchive(c.UserContext(), data)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	admin.Post("/import/csv", func(c *fiber.Ctx) error {
		sessionID := c.FormValue("upload_session_id")
		if sessionID == "" {
			return badRequest(c, "upload_session_id is required")
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "CSV file is required")
		}
		data, err := readUpload(fh)
		if err != nil {
			return badRequest(c, "could not read CSV")
		}
		res, err := svc.Imports.ImportCSV(c.UserContext(), data, sessionID)
		if err != nil {
			return respondError(c, err)
		}
		status := fiber.StatusCreated
		if res.ErrorCount > 0 {
			status = fiber.StatusUnprocessableEntity
		}
		return c.Status(status).JSON(res)
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
