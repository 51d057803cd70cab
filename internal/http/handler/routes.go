package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"neurocase/internal/service"
	"neurocase/internal/session"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, caseSvc service.CaseService, views *session.Store) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/cases", ListCases(caseSvc))
	app.Post("/cases", CreateCase(caseSvc))
	app.Get("/cases/:id", GetCase(caseSvc))
	app.Post("/cases/:id/images", GenerateImages(caseSvc))
	app.Post("/cases/:id/reprompt", Reprompt(caseSvc))
	app.Post("/cases/:id/timepoints/:tp/video", GenerateVideo(caseSvc))
	app.Get("/cases/:id/files/url", GetFileURL(caseSvc))

	app.Get("/cases/:id/view", GetView(views))
	app.Put("/cases/:id/view", UpdateView(views))
	app.Delete("/cases/:id/view", ResetView(views))

	app.Get("/cases/:id/annotations", ListAnnotations(views))
	app.Post("/cases/:id/annotations", AddAnnotation(views))
	app.Put("/cases/:id/annotations/:annotationId", SetAnnotationLabel(views))
	app.Delete("/cases/:id/annotations", ClearAnnotations(views))
}
