package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/joshharrison/critpath/internal/graph"
)

// fileState is the persisted shape of a file backend.
type fileState struct {
	Projects map[string]*projectRecord `json:"projects"`
}

// projectRecord is one saved project.
type projectRecord struct {
	Tasks        []graph.TaskDef       `json:"tasks"`
	Dependencies []graph.DependencyDef `json:"dependencies"`
	SavedAt      time.Time             `json:"saved_at"`
}

// FileStore keeps every project in a single JSON document on disk.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// OpenFile opens (or prepares to create) a JSON store at path.
func OpenFile(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &TransportError{Backend: "file", Op: "connect", Err: err}
		}
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Save implements Backend.
func (s *FileStore) Save(ctx context.Context, g *graph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	tasks, deps := g.Defs()
	name := projectName(g)
	st.Projects[name] = &projectRecord{Tasks: tasks, Dependencies: deps, SavedAt: time.Now().UTC()}
	if err := s.write(st); err != nil {
		return err
	}
	s.logger.Debug("saved project", "project", name, "tasks", len(tasks), "dependencies", len(deps))
	return nil
}

// Load implements Backend.
func (s *FileStore) Load(ctx context.Context, project string) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if project == "" {
		project = DefaultProject
	}
	s.mu.Lock()
	st, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	rec, ok := st.Projects[project]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}
	return rebuild(project, rec.Tasks, rec.Dependencies)
}

// Projects implements Backend.
func (s *FileStore) Projects(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	st, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(st.Projects))
	for name := range st.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Clear implements Backend.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &TransportError{Backend: "file", Op: "clear", Err: err}
	}
	return nil
}

// Close implements Backend. The file store holds no open handles.
func (s *FileStore) Close() error { return nil }

// read loads the document; a missing file is an empty store.
func (s *FileStore) read() (*fileState, error) {
	st := &fileState{Projects: make(map[string]*projectRecord)}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, &TransportError{Backend: "file", Op: "read", Err: err}
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, &TransportError{Backend: "file", Op: "read", Err: fmt.Errorf("parse %s: %w", s.path, err)}
	}
	if st.Projects == nil {
		st.Projects = make(map[string]*projectRecord)
	}
	return st, nil
}

// write replaces the document atomically via a temp file and rename.
func (s *FileStore) write(st *fileState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &TransportError{Backend: "file", Op: "write", Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return &TransportError{Backend: "file", Op: "write", Err: err}
	}
	return nil
}
