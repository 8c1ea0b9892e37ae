package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/store"
)

type fakeBackend struct {
	saved *graph.Graph
	err   error
}

func (f *fakeBackend) Save(_ context.Context, g *graph.Graph) error {
	if f.err != nil {
		return f.err
	}
	f.saved = g
	return nil
}

func (f *fakeBackend) Load(context.Context, string) (*graph.Graph, error) {
	return nil, store.ErrProjectNotFound
}

func (f *fakeBackend) Projects(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *fakeBackend) Clear(context.Context) error { return nil }
func (f *fakeBackend) Close() error                { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, g *graph.Graph, backend store.Backend) *httptest.Server {
	t.Helper()
	return newLimitedServer(t, g, backend, cpm.EnumerateOptions{MaxResults: 100})
}

func newLimitedServer(t *testing.T, g *graph.Graph, backend store.Backend, limits cpm.EnumerateOptions) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(g, backend, limits, testLogger()))
	t.Cleanup(srv.Close)
	return srv
}

// ladder builds two tasks per layer, each depending on both tasks of the
// previous layer, giving 2^layers paths.
func ladder(t *testing.T, layers int) *graph.Graph {
	t.Helper()
	var defs []graph.TaskDef
	for i := 0; i < layers; i++ {
		var deps []string
		if i > 0 {
			deps = []string{fmt.Sprintf("a%02d", i-1), fmt.Sprintf("b%02d", i-1)}
		}
		defs = append(defs,
			graph.TaskDef{ID: fmt.Sprintf("a%02d", i), Name: "A", Duration: 1, DependsOn: deps},
			graph.TaskDef{ID: fmt.Sprintf("b%02d", i), Name: "B", Duration: 1, DependsOn: deps},
		)
	}
	g, err := graph.Build("ladder", defs, nil)
	require.NoError(t, err)
	return g
}

func sample(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := project.Sample().Graph()
	require.NoError(t, err)
	return g
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(bytes.TrimSpace(data)) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	srv := newServer(t, sample(t), nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "none", body["backend"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestHealth_BackendDown(t *testing.T) {
	down := &fakeBackend{err: &store.TransportError{Backend: "neo4j", Op: "connect", Err: errors.New("refused")}}
	srv := newServer(t, sample(t), down)

	_, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, "degraded", body["status"])
}

func TestCriticalPath(t *testing.T) {
	srv := newServer(t, sample(t), nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/critical-path", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(11), body["total_duration"])
	assert.Equal(t, []any{"T1", "T3", "T4", "T5"}, body["task_ids"])
}

func TestCriticalPath_EmptyGraph(t *testing.T) {
	srv := newServer(t, graph.New("empty"), nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/critical-path", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "no critical path")
}

func TestPaths_Limit(t *testing.T) {
	srv := newServer(t, sample(t), nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/paths?limit=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/paths?limit=-2", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPaths_MaxVisited(t *testing.T) {
	srv := newLimitedServer(t, ladder(t, 10), nil, cpm.EnumerateOptions{MaxResults: 1, MaxVisited: 100})

	resp, body := do(t, http.MethodGet, srv.URL+"/paths?limit=1", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "enumeration limit")

	resp, _ = do(t, http.MethodGet, srv.URL+"/analysis", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPaths_StopsWhenRequestCancelled(t *testing.T) {
	h := NewAnalysisHandler(ladder(t, 26), cpm.EnumerateOptions{MaxResults: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/paths?limit=1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.Paths(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.Analysis(rec, httptest.NewRequest(http.MethodGet, "/analysis?limit=1", nil).WithContext(ctx))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalysis(t *testing.T) {
	srv := newServer(t, sample(t), nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/analysis", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cp := body["critical_path"].(map[string]any)
	assert.Equal(t, float64(11), cp["total_duration"])
	paths := body["paths"].([]any)
	require.Len(t, paths, 2)
	assert.Equal(t, true, paths[0].(map[string]any)["critical"])
	assert.Equal(t, false, paths[1].(map[string]any)["critical"])
	assert.NotNil(t, body["schedule"])
}

func TestAddTaskAndDependency(t *testing.T) {
	g := sample(t)
	srv := newServer(t, g, nil)

	resp, _ := do(t, http.MethodPost, srv.URL+"/tasks",
		`{"id": "T6", "name": "Launch Review", "duration": 5, "depends_on": ["T5"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, body := do(t, http.MethodGet, srv.URL+"/critical-path", "")
	assert.Equal(t, float64(16), body["total_duration"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/tasks", `{"id": "T6", "name": "Again", "duration": 1}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/tasks", `{"id": "T7", "name": "X", "duration": 1, "depends_on": ["nope"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_, ok := g.Task("T7")
	assert.False(t, ok, "rejected task must not be added")

	resp, _ = do(t, http.MethodPost, srv.URL+"/dependencies", `{"from": "T2", "to": "T1"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAddDependency_CycleRejected(t *testing.T) {
	g := sample(t)
	srv := newServer(t, g, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/dependencies", `{"from": "T1", "to": "T5"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, body["cycle"])
	assert.Empty(t, g.Successors("T1"))

	resp, _ = do(t, http.MethodPost, srv.URL+"/dependencies", `{"from": "T1", "to": "T1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAddDependency_ConcurrentOppositeEdges(t *testing.T) {
	for i := 0; i < 50; i++ {
		tasks := []graph.TaskDef{{ID: "A", Name: "A", Duration: 1}, {ID: "B", Name: "B", Duration: 1}}
		for j := 0; j < 500; j++ {
			tasks = append(tasks, graph.TaskDef{ID: fmt.Sprintf("F%03d", j), Name: "Filler", Duration: 1})
		}
		g, err := graph.Build("race", tasks, nil)
		require.NoError(t, err)
		router := NewRouter(g, nil, cpm.EnumerateOptions{}, testLogger())

		codes := make([]int, 2)
		bodies := []string{`{"from": "A", "to": "B"}`, `{"from": "B", "to": "A"}`}
		var wg sync.WaitGroup
		for k, body := range bodies {
			wg.Add(1)
			go func(k int, body string) {
				defer wg.Done()
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dependencies", strings.NewReader(body)))
				codes[k] = rec.Code
			}(k, body)
		}
		wg.Wait()

		require.ElementsMatch(t, []int{http.StatusCreated, http.StatusUnprocessableEntity}, codes, "iteration %d", i)
		require.NoError(t, graph.Validate(g), "iteration %d", i)
		require.Len(t, g.Edges(), 1)
	}
}

func TestSetStatus(t *testing.T) {
	g := sample(t)
	srv := newServer(t, g, nil)

	resp, body := do(t, http.MethodPatch, srv.URL+"/tasks/T4/status", `{"status": "in_progress"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "In Progress", body["status"])

	resp, _ = do(t, http.MethodPatch, srv.URL+"/tasks/T9/status", `{"status": "done"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPatch, srv.URL+"/tasks/T4/status", `{"status": "paused"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSave(t *testing.T) {
	backend := &fakeBackend{}
	srv := newServer(t, sample(t), backend)

	resp, body := do(t, http.MethodPost, srv.URL+"/save", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "AI Dashboard Implementation", body["saved"])
	require.NotNil(t, backend.saved)
	assert.Equal(t, 5, backend.saved.Len())
}

func TestSave_Errors(t *testing.T) {
	srv := newServer(t, sample(t), nil)
	resp, _ := do(t, http.MethodPost, srv.URL+"/save", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	down := &fakeBackend{err: &store.TransportError{Backend: "postgres", Op: "save", Err: errors.New("timeout")}}
	srv = newServer(t, sample(t), down)
	resp, _ = do(t, http.MethodPost, srv.URL+"/save", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDOT(t *testing.T) {
	srv := newServer(t, sample(t), nil)

	resp, err := http.Get(srv.URL + "/graph.dot")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"T4" -> "T5" [color=red, penwidth=2];`)
}

func TestProjectAndTasks(t *testing.T) {
	srv := newServer(t, sample(t), nil)

	_, body := do(t, http.MethodGet, srv.URL+"/project", "")
	assert.Equal(t, float64(5), body["tasks"])
	assert.Equal(t, []any{"T1", "T2"}, body["start_tasks"])
	assert.Equal(t, []any{"T5"}, body["end_tasks"])

	resp, err := http.Get(srv.URL + "/tasks")
	require.NoError(t, err)
	defer resp.Body.Close()
	var tasks []graph.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tasks))
	assert.Len(t, tasks, 5)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(&graph.DuplicateIDError{ID: "a"}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&graph.DanglingReferenceError{From: "a", To: "b", Missing: "b"}))
	assert.Equal(t, http.StatusNotFound, statusFor(store.ErrProjectNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(fmt.Errorf("enumerate: %w", cpm.ErrEnumerationLimit)))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.Canceled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
