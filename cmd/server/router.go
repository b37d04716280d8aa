package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/echoscribe/echoscribe-api/internal/api"
	apiMiddleware "github.com/echoscribe/echoscribe-api/internal/api/middleware"
)

// setupRouter wires the HTTP surface: note submission and inspection under
// /api, the operational metrics snapshot under /internal, and a liveness
// probe. Request logging happens inside the trace middleware so every line
// carries the trace ID.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	noteHandler := api.NewNoteHandler(app.noteService, app.logger)
	metricsHandler := api.NewMetricsHandler(app.metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/notes", noteHandler.SubmitNote)
		r.Get("/notes/{id}", noteHandler.GetNote)
		r.Get("/notes/{id}/status", noteHandler.GetNoteStatus)
		r.Post("/notes/{id}/retry", noteHandler.RetryNote)
		r.Post("/notes/{id}/enqueue", noteHandler.EnqueueNote)
		r.Get("/notes/{id}/tasks", noteHandler.ListTasks)
	})

	// Not part of the public API surface.
	r.Get("/internal/metrics", metricsHandler.GetMetrics)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("health check write failed", "error", err)
		}
	})

	return r
}
