// Package api exposes a read-only HTTP view over batch progress and the
// run catalog.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Get("/health", HealthHandler)
	r.Get("/api/progress", app.ProgressHandler)
	r.Get("/api/runs", app.ListRunsHandler)
	r.Get("/api/runs/{id}", app.GetRunHandler)
	r.Get("/api/runs/{id}/slides", app.RunSlidesHandler)

	return r
}
