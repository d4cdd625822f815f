package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/slidecap/internal/catalog"
	"github.com/kdimtricp/slidecap/internal/progress"
)

// App holds the handlers' dependencies.
type App struct {
	Runs     *catalog.RunRepo
	Progress progress.Store
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (app *App) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	records, err := app.Progress.List()
	if err != nil {
		http.Error(w, "Failed to load progress", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (app *App) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	runs, err := app.Runs.ListRuns(r.Context())
	if err != nil {
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*catalog.Run{}
	}
	writeJSON(w, runs)
}

func (app *App) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	run, err := app.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, run)
}

func (app *App) RunSlidesHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := app.Runs.GetRun(r.Context(), id); errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}

	slides, err := app.Runs.SlidesByRun(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to list slides", http.StatusInternalServerError)
		return
	}
	if slides == nil {
		slides = []*catalog.Slide{}
	}
	writeJSON(w, slides)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
