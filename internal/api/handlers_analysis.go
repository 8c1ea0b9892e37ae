package api

import (
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/reporter"
)

// AnalysisHandler serves read-only analyses of the live task graph.
type AnalysisHandler struct {
	g      *graph.Graph
	limits cpm.EnumerateOptions
}

// NewAnalysisHandler creates an AnalysisHandler. limits.MaxResults is the
// default for ?limit and limits.MaxVisited caps every enumeration.
func NewAnalysisHandler(g *graph.Graph, limits cpm.EnumerateOptions) *AnalysisHandler {
	return &AnalysisHandler{g: g, limits: limits}
}

// options reads ?limit=N into the configured enumeration bounds.
func (h *AnalysisHandler) options(r *http.Request) (cpm.EnumerateOptions, bool) {
	opts := h.limits
	v := r.URL.Query().Get("limit")
	if v == "" {
		return opts, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return opts, false
	}
	opts.MaxResults = n
	return opts, true
}

// CriticalPath handles GET /critical-path
func (h *AnalysisHandler) CriticalPath(w http.ResponseWriter, r *http.Request) {
	cp, err := cpm.CriticalPath(h.g)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

type pathsResponse struct {
	Count int              `json:"count"`
	Paths []cpm.PathResult `json:"paths"`
}

// Paths handles GET /paths?limit=N. The walk stops when the client goes away.
func (h *AnalysisHandler) Paths(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.options(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	paths, err := cpm.EnumerateContext(r.Context(), h.g, opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	if paths == nil {
		paths = []cpm.PathResult{}
	}
	writeJSON(w, http.StatusOK, pathsResponse{Count: len(paths), Paths: paths})
}

// Schedule handles GET /schedule
func (h *AnalysisHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	res, err := cpm.Analyze(h.g)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Analysis handles GET /analysis. The three analyses run concurrently on a
// single snapshot so they always describe the same graph.
func (h *AnalysisHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.options(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	s := h.g.Snapshot()
	var (
		cp       *cpm.PathResult
		paths    []cpm.PathResult
		schedule *cpm.Result
	)
	eg, ctx := errgroup.WithContext(r.Context())
	eg.Go(func() (err error) {
		cp, err = cpm.CriticalPath(s)
		return err
	})
	eg.Go(func() (err error) {
		paths, err = cpm.EnumerateContext(ctx, s, opts)
		return err
	})
	eg.Go(func() (err error) {
		schedule, err = cpm.Analyze(s)
		return err
	})
	if err := eg.Wait(); err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reporter.New(s, cp, paths, schedule).Report())
}

// DOT handles GET /graph.dot
func (h *AnalysisHandler) DOT(w http.ResponseWriter, r *http.Request) {
	s := h.g.Snapshot()
	cp, err := cpm.CriticalPath(s)
	if err != nil && !errors.Is(err, graph.ErrEmptyGraph) {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	_ = reporter.New(s, cp, nil, nil).WriteDOT(w)
}
