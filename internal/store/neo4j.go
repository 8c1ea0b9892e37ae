package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/joshharrison/critpath/internal/graph"
)

// Neo4jStore persists projects as a property graph:
//
//	(:Project {name})-[:CONTAINS]->(:Task {project, id, name, duration, status})
//	(:Task)-[:DEPENDS_ON]->(:Task)
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// OpenNeo4j connects with basic auth and verifies connectivity.
func OpenNeo4j(ctx context.Context, uri, username, password, database string, logger *slog.Logger) (*Neo4jStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, &TransportError{Backend: "neo4j", Op: "connect", Err: err}
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, &TransportError{Backend: "neo4j", Op: "connect", Err: err}
	}
	logger.Debug("opened neo4j store", "uri", uri)
	return &Neo4jStore{driver: driver, database: database, logger: logger}, nil
}

// Save implements Backend. Existing tasks of the project are detached and
// replaced inside a single write transaction.
func (s *Neo4jStore) Save(ctx context.Context, g *graph.Graph) error {
	name := projectName(g)
	tasks, deps := g.Defs()

	taskRows := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		taskRows = append(taskRows, map[string]any{
			"id":       t.ID,
			"name":     t.Name,
			"duration": int64(t.Duration),
			"status":   t.Status,
		})
	}
	depRows := make([]map[string]any, 0, len(deps))
	for _, d := range deps {
		depRows = append(depRows, map[string]any{"from": d.From, "to": d.To})
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		steps := []struct {
			cypher string
			params map[string]any
		}{
			{`MATCH (t:Task {project: $project}) DETACH DELETE t`, map[string]any{"project": name}},
			{`MERGE (p:Project {name: $project}) SET p.updated_at = datetime()`, map[string]any{"project": name}},
			{`MATCH (p:Project {name: $project})
			  UNWIND $tasks AS task
			  CREATE (p)-[:CONTAINS]->(:Task {project: $project, id: task.id, name: task.name,
			                                  duration: task.duration, status: task.status})`,
				map[string]any{"project": name, "tasks": taskRows}},
			{`UNWIND $deps AS dep
			  MATCH (a:Task {project: $project, id: dep.from}), (b:Task {project: $project, id: dep.to})
			  CREATE (a)-[:DEPENDS_ON]->(b)`,
				map[string]any{"project": name, "deps": depRows}},
		}
		for _, step := range steps {
			res, err := tx.Run(ctx, step.cypher, step.params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return &TransportError{Backend: "neo4j", Op: "save", Err: err}
	}
	s.logger.Debug("saved project", "project", name, "tasks", len(tasks), "dependencies", len(deps))
	return nil
}

// Load implements Backend.
func (s *Neo4jStore) Load(ctx context.Context, project string) (*graph.Graph, error) {
	if project == "" {
		project = DefaultProject
	}
	params := map[string]any{"project": project}

	found, err := s.query(ctx, `MATCH (p:Project {name: $project}) RETURN p.name AS name`, params)
	if err != nil {
		return nil, &TransportError{Backend: "neo4j", Op: "load", Err: err}
	}
	if len(found.Records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}

	res, err := s.query(ctx, `
		MATCH (:Project {name: $project})-[:CONTAINS]->(t:Task)
		RETURN t.id AS id, t.name AS name, t.duration AS duration, t.status AS status
		ORDER BY id`, params)
	if err != nil {
		return nil, &TransportError{Backend: "neo4j", Op: "load", Err: err}
	}
	tasks := make([]graph.TaskDef, 0, len(res.Records))
	for _, rec := range res.Records {
		id, _, err := neo4j.GetRecordValue[string](rec, "id")
		if err != nil {
			return nil, &TransportError{Backend: "neo4j", Op: "load", Err: err}
		}
		name, _, _ := neo4j.GetRecordValue[string](rec, "name")
		duration, _, err := neo4j.GetRecordValue[int64](rec, "duration")
		if err != nil {
			return nil, &TransportError{Backend: "neo4j", Op: "load", Err: fmt.Errorf("task %s duration: %w", id, err)}
		}
		status, _, _ := neo4j.GetRecordValue[string](rec, "status")
		tasks = append(tasks, graph.TaskDef{ID: id, Name: name, Duration: int(duration), Status: status})
	}

	res, err = s.query(ctx, `
		MATCH (a:Task {project: $project})-[:DEPENDS_ON]->(b:Task)
		RETURN a.id AS from_id, b.id AS to_id
		ORDER BY from_id, to_id`, params)
	if err != nil {
		return nil, &TransportError{Backend: "neo4j", Op: "load", Err: err}
	}
	deps := make([]graph.DependencyDef, 0, len(res.Records))
	for _, rec := range res.Records {
		from, _, err := neo4j.GetRecordValue[string](rec, "from_id")
		if err != nil {
			return nil, &TransportError{Backend: "neo4j", Op: "load", Err: err}
		}
		to, _, err := neo4j.GetRecordValue[string](rec, "to_id")
		if err != nil {
			return nil, &TransportError{Backend: "neo4j", Op: "load", Err: err}
		}
		deps = append(deps, graph.DependencyDef{From: from, To: to})
	}

	return rebuild(project, tasks, deps)
}

// Projects implements Backend.
func (s *Neo4jStore) Projects(ctx context.Context) ([]string, error) {
	res, err := s.query(ctx, `MATCH (p:Project) RETURN p.name AS name ORDER BY name`, nil)
	if err != nil {
		return nil, &TransportError{Backend: "neo4j", Op: "list projects", Err: err}
	}
	names := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		name, _, err := neo4j.GetRecordValue[string](rec, "name")
		if err != nil {
			return nil, &TransportError{Backend: "neo4j", Op: "list projects", Err: err}
		}
		names = append(names, name)
	}
	return names, nil
}

// Clear implements Backend. Only Project and Task nodes are removed.
func (s *Neo4jStore) Clear(ctx context.Context) error {
	if _, err := s.query(ctx, `MATCH (n) WHERE n:Project OR n:Task DETACH DELETE n`, nil); err != nil {
		return &TransportError{Backend: "neo4j", Op: "clear", Err: err}
	}
	return nil
}

// Close implements Backend.
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

func (s *Neo4jStore) query(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	return neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
}
