package router

import (
	"video_pipeline_service/internal/pipeline/api/handlers"
	"video_pipeline_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers every handler the api server mounts
type Handlers struct {
	Upload *handlers.UploadHandler
	Job    *handlers.JobHandler
	Video  *handlers.VideoHandler
	Ping   func() error
}

// RegisterRoutes 注册 pipeline 相关的路由
// @title Video Pipeline API
// @version 1.0
// @BasePath /
func RegisterRoutes(app *fiber.App, h Handlers, transcoderSecret string) {
	app.Get("/", handlers.ConnectCheck)
	app.Get("/healthz", handlers.Healthz(h.Ping))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Post("/debug", handlers.DebugLogFlag)

	api := app.Group("/api")

	jobs := api.Group("/jobs", middlewares.TranscoderAuth(transcoderSecret))
	jobs.Get("/next", h.Job.Next)
	jobs.Post("/complete", h.Job.Complete)
	jobs.Post("/fail", h.Job.Fail)

	videos := api.Group("/videos")
	auth := middlewares.JWTMiddleware()
	optional := middlewares.OptionalJWTMiddleware()

	videos.Post("/initiate", auth, h.Upload.Initiate)
	videos.Post("/complete", auth, h.Upload.Complete)
	videos.Get("/pending", auth, h.Upload.ListPending)

	videos.Get("/:id", optional, h.Video.Get)
	videos.Get("/:id/stream", optional, h.Video.Stream)
	videos.Put("/:id", auth, h.Video.Update)
	videos.Delete("/:id", auth, h.Video.Delete)
}
