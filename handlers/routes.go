// handlers/routes.go
package handlers

import (
	"log"
	"strings"

	"speech-practice/middleware"
	"speech-practice/observe"
	"speech-practice/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// bodyLimit fits a full import archive; single files are capped lower by
// the services.
const bodyLimit = 200 * 1024 * 1024

// Deps is everything the HTTP surface needs.
type Deps struct {
	Auth     *services.AuthService
	Users    *services.UserService
	Games    *services.GameService
	Speeches *services.SpeechService
	Tags     *services.TagService
	Imports  *services.ImportService
	Scoring  *services.ScoringService
	Metrics  *observe.Metrics
	Checkers []Checker

	AllowedOrigins    []string
	GatewayToken      string
	AdminUsername     string
	AdminPasswordHash string
}

// NewApp builds the fiber app with every route mounted under /api/v1.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "speech-practice",
		BodyLimit: bodyLimit,
	})

	app.Use(recover.New())
	if d.Metrics != nil {
		app.Use(middleware.RequestMetrics(d.Metrics))
	}

	origins := strings.Join(d.AllowedOrigins, ",")
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	SetupHealthRoutes(app, d.Checkers...)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	requireUser := middleware.UserAuthMiddleware(d.Auth)

	SetupAuthRoutes(api, d.Auth, d.GatewayToken)
	SetupUserRoutes(api, d.Users, requireUser)
	SetupGameRoutes(api, d.Games, d.Speeches, requireUser)
	SetupSpeechRoutes(api, d.Scoring, requireUser)
	SetupAdminRoutes(api, AdminServices{Speeches: d.Speeches, Tags: d.Tags, Imports: d.Imports},
		middleware.AdminAuthMiddleware(d.AdminUsername, d.AdminPasswordHash))

	log.Printf("✅ CORS configured for origins: %s", origins)
	return app
}
