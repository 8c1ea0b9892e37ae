// Package store persists task graphs to pluggable backends and rebuilds them.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshharrison/critpath/internal/config"
	"github.com/joshharrison/critpath/internal/graph"
)

// DefaultProject names graphs saved without a project name.
const DefaultProject = "default"

// ErrProjectNotFound is returned by Load when the backend has no such project.
var ErrProjectNotFound = errors.New("project not found")

// Backend persists tasks and dependency edges and retrieves them for
// rebuilding a Graph. Implementations must be safe for concurrent use.
type Backend interface {
	// Save replaces the stored contents of the graph's project.
	Save(ctx context.Context, g *graph.Graph) error
	// Load rebuilds and validates a stored project.
	Load(ctx context.Context, project string) (*graph.Graph, error)
	// Projects lists stored project names, sorted.
	Projects(ctx context.Context) ([]string, error)
	// Clear removes every stored project.
	Clear(ctx context.Context) error
	Close() error
}

// TransportError reports a backend connectivity or I/O failure. It is never
// used for structural graph errors.
type TransportError struct {
	Backend string // e.g. "sqlite", "neo4j"
	Op      string // operation that failed, e.g. "connect", "save"
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s backend %s: %v", e.Backend, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err came from backend I/O.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Open connects to the backend selected by cfg. The caller owns the returned
// handle and must Close it.
func Open(ctx context.Context, cfg config.Store, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	logger = logger.With("backend", cfg.Driver)

	var (
		b   Backend
		err error
	)
	switch cfg.Driver {
	case "file":
		b, err = OpenFile(cfg.DSN, logger)
	case "sqlite":
		b, err = OpenSQLite(ctx, cfg.DSN, logger)
	case "postgres":
		b, err = OpenPostgres(ctx, cfg.DSN, logger)
	case "mongo":
		b, err = OpenMongo(ctx, cfg.DSN, cfg.Database, logger)
	case "neo4j":
		b, err = OpenNeo4j(ctx, cfg.DSN, cfg.Username, cfg.Password, cfg.Database, logger)
	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Resolve picks the project to load. An explicit name wins; otherwise the
// only stored project is used, falling back to DefaultProject when the
// backend holds none or several.
func Resolve(ctx context.Context, b Backend, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	names, err := b.Projects(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 1 {
		return names[0], nil
	}
	return DefaultProject, nil
}

func projectName(g *graph.Graph) string {
	if name := g.Name(); name != "" {
		return name
	}
	return DefaultProject
}

// rebuild turns stored definitions back into a validated graph. Failures
// here are graph errors, not transport errors.
func rebuild(project string, tasks []graph.TaskDef, deps []graph.DependencyDef) (*graph.Graph, error) {
	g, err := graph.Build(project, tasks, deps)
	if err != nil {
		return nil, fmt.Errorf("rebuild project %s: %w", project, err)
	}
	return g, nil
}
