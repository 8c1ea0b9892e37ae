package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joshharrison/critpath/internal/graph"
)

var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		name TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		project  TEXT NOT NULL,
		id       TEXT NOT NULL,
		name     TEXT NOT NULL,
		duration INTEGER NOT NULL,
		status   TEXT NOT NULL,
		PRIMARY KEY (project, id)
	)`,
	`CREATE TABLE IF NOT EXISTS dependencies (
		project TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id   TEXT NOT NULL,
		PRIMARY KEY (project, from_id, to_id)
	)`,
}

// sqlStore is shared by the sqlite and postgres backends. Queries are written
// with ? placeholders and rebound for drivers that use $n.
type sqlStore struct {
	db      *sql.DB
	backend string
	dollar  bool
	logger  *slog.Logger
}

func newSQLStore(ctx context.Context, db *sql.DB, backend string, dollar bool, logger *slog.Logger) (*sqlStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &TransportError{Backend: backend, Op: "connect", Err: err}
	}
	for _, stmt := range sqlSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, &TransportError{Backend: backend, Op: "init schema", Err: err}
		}
	}
	return &sqlStore{db: db, backend: backend, dollar: dollar, logger: logger}, nil
}

func (s *sqlStore) q(query string) string {
	if s.dollar {
		return rebind(query)
	}
	return query
}

func (s *sqlStore) fail(op string, err error) error {
	return &TransportError{Backend: s.backend, Op: op, Err: err}
}

// Save implements Backend. The project's rows are replaced in one transaction.
func (s *sqlStore) Save(ctx context.Context, g *graph.Graph) error {
	name := projectName(g)
	tasks, deps := g.Defs()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("save", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO projects (name) VALUES (?) ON CONFLICT (name) DO NOTHING`), name); err != nil {
		return s.fail("save", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM dependencies WHERE project = ?`), name); err != nil {
		return s.fail("save", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM tasks WHERE project = ?`), name); err != nil {
		return s.fail("save", err)
	}

	taskStmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO tasks (project, id, name, duration, status) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return s.fail("save", err)
	}
	defer taskStmt.Close()
	for _, t := range tasks {
		if _, err := taskStmt.ExecContext(ctx, name, t.ID, t.Name, t.Duration, t.Status); err != nil {
			return s.fail("save", fmt.Errorf("task %s: %w", t.ID, err))
		}
	}

	depStmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO dependencies (project, from_id, to_id) VALUES (?, ?, ?)`))
	if err != nil {
		return s.fail("save", err)
	}
	defer depStmt.Close()
	for _, d := range deps {
		if _, err := depStmt.ExecContext(ctx, name, d.From, d.To); err != nil {
			return s.fail("save", fmt.Errorf("dependency %s->%s: %w", d.From, d.To, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return s.fail("save", err)
	}
	s.logger.Debug("saved project", "project", name, "tasks", len(tasks), "dependencies", len(deps))
	return nil
}

// Load implements Backend.
func (s *sqlStore) Load(ctx context.Context, project string) (*graph.Graph, error) {
	if project == "" {
		project = DefaultProject
	}

	var exists int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM projects WHERE name = ?`), project).Scan(&exists)
	if err != nil {
		return nil, s.fail("load", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, name, duration, status FROM tasks WHERE project = ? ORDER BY id`), project)
	if err != nil {
		return nil, s.fail("load", err)
	}
	var tasks []graph.TaskDef
	for rows.Next() {
		var t graph.TaskDef
		if err := rows.Scan(&t.ID, &t.Name, &t.Duration, &t.Status); err != nil {
			rows.Close()
			return nil, s.fail("load", err)
		}
		tasks = append(tasks, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, s.fail("load", err)
	}

	rows, err = s.db.QueryContext(ctx, s.q(`SELECT from_id, to_id FROM dependencies WHERE project = ? ORDER BY from_id, to_id`), project)
	if err != nil {
		return nil, s.fail("load", err)
	}
	defer rows.Close()
	var deps []graph.DependencyDef
	for rows.Next() {
		var d graph.DependencyDef
		if err := rows.Scan(&d.From, &d.To); err != nil {
			return nil, s.fail("load", err)
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("load", err)
	}

	return rebuild(project, tasks, deps)
}

// Projects implements Backend.
func (s *sqlStore) Projects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM projects ORDER BY name`)
	if err != nil {
		return nil, s.fail("list projects", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, s.fail("list projects", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list projects", err)
	}
	return names, nil
}

// Clear implements Backend.
func (s *sqlStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("clear", err)
	}
	defer tx.Rollback()
	for _, table := range []string{"dependencies", "tasks", "projects"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return s.fail("clear", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fail("clear", err)
	}
	return nil
}

// Close implements Backend.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $1, $2, ... Quoted literals are not
// inspected; queries in this package never contain a literal '?'.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
