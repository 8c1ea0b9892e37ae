package store

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists projects in a local SQLite database.
type SQLiteStore struct {
	*sqlStore
}

// OpenSQLite creates or opens the database at path in WAL mode.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &TransportError{Backend: "sqlite", Op: "connect", Err: err}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, &TransportError{Backend: "sqlite", Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(1) // one writer at a time

	s, err := newSQLStore(ctx, db, "sqlite", false, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened sqlite store", "path", path)
	return &SQLiteStore{s}, nil
}
