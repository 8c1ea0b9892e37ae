package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists projects in PostgreSQL.
type PostgresStore struct {
	*sqlStore
}

// OpenPostgres connects with a lib/pq DSN and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &TransportError{Backend: "postgres", Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	s, err := newSQLStore(ctx, db, "postgres", true, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened postgres store")
	return &PostgresStore{s}, nil
}
