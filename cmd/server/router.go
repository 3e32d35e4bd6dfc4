package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/quizgen-api/internal/api"
	apiMiddleware "github.com/phrazzld/quizgen-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	generationHandler := api.NewGenerationHandler(app.generationService, app.logger)
	uploadHandler := api.NewUploadHandler(app.uploadService, app.logger).
		WithMaxBytes(app.config.Server.MaxUploadBytes)
	questionHandler := api.NewQuestionHandler(app.questionService, app.publishService, app.logger)
	opsHandler := api.NewOpsHandler(app.opsService, app.logger)

	r.Route("/api", func(r chi.Router) {
		// Generation control and progress
		r.Get("/generation/uploads/{uploadId}", generationHandler.GetOverview)
		r.Post("/generation/uploads/{uploadId}/start", generationHandler.StartGeneration)
		r.Post("/generation/pages/{pageId}/retry", generationHandler.RetryPage)
		r.Post("/generation/pages/{pageId}/regenerate", generationHandler.RegeneratePage)

		r.Get("/ops/overview", opsHandler.GetOverview)

		// Upload lookups and the review pool
		r.Get("/uploads", uploadHandler.ListUploads)
		r.Get("/uploads/{uploadId}", uploadHandler.GetUpload)
		r.Get("/questions", questionHandler.ListQuestions)

		// Routes that record who acted
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.RequireReviewer)
			r.Post("/uploads", uploadHandler.CreateUpload)
			r.Patch("/questions/{questionId}", questionHandler.UpdateQuestion)
			r.Post("/questions/bulk/status", questionHandler.BulkUpdateStatus)
			r.Post("/questions/bulk/delete", questionHandler.BulkDelete)
			r.Post("/questions/bulk/publish", questionHandler.BulkPublish)
		})
	})

	r.Get("/health", api.Health)

	return r
}
