// Package api serves a task graph and its analyses over HTTP.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/store"
)

// NewRouter creates the Chi router with all routes and middleware. backend
// may be nil, in which case POST /save answers 503. limits bounds path
// enumeration on /paths and /analysis.
func NewRouter(g *graph.Graph, backend store.Backend, limits cpm.EnumerateOptions, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	graphH := NewGraphHandler(g, backend, logger)
	analysisH := NewAnalysisHandler(g, limits)

	r.Get("/health", graphH.Health)
	r.Get("/project", graphH.Project)
	r.Post("/save", graphH.Save)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", graphH.ListTasks)
		r.Post("/", graphH.AddTask)
		r.Patch("/{id}/status", graphH.SetStatus)
	})
	r.Post("/dependencies", graphH.AddDependency)

	r.Get("/critical-path", analysisH.CriticalPath)
	r.Get("/paths", analysisH.Paths)
	r.Get("/schedule", analysisH.Schedule)
	r.Get("/analysis", analysisH.Analysis)
	r.Get("/graph.dot", analysisH.DOT)

	return r
}
