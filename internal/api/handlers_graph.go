package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/store"
)

// GraphHandler serves the live task graph and its mutations.
type GraphHandler struct {
	g       *graph.Graph
	backend store.Backend
	logger  *slog.Logger

	// mu serializes mutations so a trial and its live apply see the same graph.
	mu sync.Mutex
}

// NewGraphHandler creates a GraphHandler. backend may be nil.
func NewGraphHandler(g *graph.Graph, backend store.Backend, logger *slog.Logger) *GraphHandler {
	return &GraphHandler{g: g, backend: backend, logger: logger}
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Message string `json:"message,omitempty"`
}

// Health handles GET /health
func (h *GraphHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Backend: "none"}
	if h.backend != nil {
		if _, err := h.backend.Projects(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Backend = "error"
			resp.Message = err.Error()
		} else {
			resp.Backend = "ok"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type projectResponse struct {
	Name         string   `json:"name"`
	Tasks        int      `json:"tasks"`
	Dependencies int      `json:"dependencies"`
	StartTasks   []string `json:"start_tasks"`
	EndTasks     []string `json:"end_tasks"`
}

// Project handles GET /project
func (h *GraphHandler) Project(w http.ResponseWriter, r *http.Request) {
	s := h.g.Snapshot()
	writeJSON(w, http.StatusOK, projectResponse{
		Name:         s.Name(),
		Tasks:        s.Len(),
		Dependencies: len(s.Edges()),
		StartTasks:   s.Roots(),
		EndTasks:     s.Leaves(),
	})
}

// ListTasks handles GET /tasks
func (h *GraphHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.g.Tasks())
}

// AddTask handles POST /tasks. The task and its depends_on edges are tried on
// a snapshot first so a rejected request leaves the graph untouched.
func (h *GraphHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	var req graph.TaskDef
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	status, err := graph.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	apply := func(g *graph.Graph) error {
		if err := g.AddTask(req.ID, req.Name, req.Duration, status); err != nil {
			return err
		}
		for _, to := range req.DependsOn {
			if err := g.AddDependency(req.ID, to); err != nil {
				return err
			}
		}
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	trial := h.g.Snapshot()
	if err := apply(trial); err != nil {
		writeErr(w, err)
		return
	}
	if err := graph.Validate(trial); err != nil {
		writeErr(w, err)
		return
	}
	if err := apply(h.g); err != nil {
		writeErr(w, err)
		return
	}

	t, _ := h.g.Task(req.ID)
	writeJSON(w, http.StatusCreated, t)
}

// AddDependency handles POST /dependencies. Edges that would close a cycle
// are rejected with 422.
func (h *GraphHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	var req graph.DependencyDef
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	trial := h.g.Snapshot()
	if err := trial.AddDependency(req.From, req.To); err != nil {
		writeErr(w, err)
		return
	}
	if err := graph.Validate(trial); err != nil {
		writeErr(w, err)
		return
	}
	if err := h.g.AddDependency(req.From, req.To); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, graph.Dependency{From: req.From, To: req.To})
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PATCH /tasks/{id}/status
func (h *GraphHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	status, err := graph.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.g.SetStatus(id, status); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	t, _ := h.g.Task(id)
	writeJSON(w, http.StatusOK, t)
}

// Save handles POST /save
func (h *GraphHandler) Save(w http.ResponseWriter, r *http.Request) {
	if h.backend == nil {
		writeError(w, http.StatusServiceUnavailable, "no backend configured")
		return
	}
	s := h.g.Snapshot()
	if err := h.backend.Save(r.Context(), s); err != nil {
		h.logger.Error("save failed", "error", err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": s.Name(), "tasks": s.Len()})
}
