package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/joshharrison/critpath/internal/graph"
)

const (
	defaultMongoDatabase = "critpath"
	mongoCollection      = "projects"
)

// projectDoc stores one project per document, keyed by name.
type projectDoc struct {
	Name         string                `bson:"_id"`
	Tasks        []graph.TaskDef       `bson:"tasks"`
	Dependencies []graph.DependencyDef `bson:"dependencies"`
	UpdatedAt    time.Time             `bson:"updated_at"`
}

// MongoStore persists projects as documents in MongoDB.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

// OpenMongo connects to uri and verifies the connection with a ping.
func OpenMongo(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if database == "" {
		database = defaultMongoDatabase
	}

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &TransportError{Backend: "mongo", Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &TransportError{Backend: "mongo", Op: "connect", Err: err}
	}

	logger.Debug("opened mongo store", "database", database)
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
		logger: logger,
	}, nil
}

// Save implements Backend.
func (s *MongoStore) Save(ctx context.Context, g *graph.Graph) error {
	tasks, deps := g.Defs()
	doc := projectDoc{
		Name:         projectName(g),
		Tasks:        tasks,
		Dependencies: deps,
		UpdatedAt:    time.Now().UTC(),
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.Name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return &TransportError{Backend: "mongo", Op: "save", Err: err}
	}
	s.logger.Debug("saved project", "project", doc.Name, "tasks", len(tasks), "dependencies", len(deps))
	return nil
}

// Load implements Backend.
func (s *MongoStore) Load(ctx context.Context, project string) (*graph.Graph, error) {
	if project == "" {
		project = DefaultProject
	}
	var doc projectDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": project}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}
	if err != nil {
		return nil, &TransportError{Backend: "mongo", Op: "load", Err: err}
	}
	return rebuild(project, doc.Tasks, doc.Dependencies)
}

// Projects implements Backend.
func (s *MongoStore) Projects(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "_id", bson.D{})
	if err != nil {
		return nil, &TransportError{Backend: "mongo", Op: "list projects", Err: err}
	}
	names := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Clear implements Backend.
func (s *MongoStore) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return &TransportError{Backend: "mongo", Op: "clear", Err: err}
	}
	return nil
}

// Close implements Backend.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
