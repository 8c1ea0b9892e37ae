package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store selects and parameterises the persistence backend.
type Store struct {
	Driver   string // file, sqlite, postgres, mongo, neo4j
	DSN      string // file path, sqlite path, postgres DSN, mongo URI or neo4j URI
	Username string // neo4j
	Password string // neo4j
	Database string // mongo database / neo4j database
}

// Config holds runtime configuration. Environment variables provide defaults
// and command-line flags override them.
type Config struct {
	Store        Store
	Project      string
	Addr         string
	MaxPaths     int
	MaxVisited   int
	LogLevel     string
	AWSRegion    string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Session    string
	AnthropicKey string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Store: Store{
			Driver:   envStr("CRITPATH_DB_DRIVER", "file"),
			DSN:      envStr("CRITPATH_DSN", ""),
			Username: envStr("NEO4J_USERNAME", "neo4j"),
			Password: envStr("NEO4J_PASSWORD", ""),
			Database: envStr("CRITPATH_DATABASE", ""),
		},
		Project:      envStr("CRITPATH_PROJECT", ""),
		Addr:         envStr("CRITPATH_ADDR", ":8080"),
		MaxPaths:     envInt("CRITPATH_MAX_PATHS", 100),
		MaxVisited:   envInt("CRITPATH_MAX_VISITED", 1000000),
		LogLevel:     envStr("CRITPATH_LOG_LEVEL", "info"),
		AWSRegion:    envStr("AWS_REGION", ""),
		S3Endpoint:   envStr("CRITPATH_S3_ENDPOINT", ""),
		S3AccessKey:  envStr("CRITPATH_S3_ACCESS_KEY_ID", ""),
		S3SecretKey:  envStr("CRITPATH_S3_SECRET_ACCESS_KEY", ""),
		S3Session:    envStr("CRITPATH_S3_SESSION_TOKEN", ""),
		AnthropicKey: envStr("ANTHROPIC_API_KEY", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks option values after flags have been applied.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "sqlite", "postgres", "mongo", "neo4j":
	default:
		return fmt.Errorf("CRITPATH_DB_DRIVER must be one of file, sqlite, postgres, mongo, neo4j; got %q", c.Store.Driver)
	}
	if (c.Store.Driver == "postgres" || c.Store.Driver == "mongo") && c.Store.DSN == "" {
		return fmt.Errorf("CRITPATH_DSN is required for the %s driver", c.Store.Driver)
	}
	if c.MaxPaths < 0 {
		return fmt.Errorf("CRITPATH_MAX_PATHS must not be negative, got %d", c.MaxPaths)
	}
	if c.MaxVisited < 0 {
		return fmt.Errorf("CRITPATH_MAX_VISITED must not be negative, got %d", c.MaxVisited)
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return fmt.Errorf("CRITPATH_S3_ACCESS_KEY_ID and CRITPATH_S3_SECRET_ACCESS_KEY must be set together")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// WithDefaults fills in the DSN for drivers that have a sensible local default.
func (s Store) WithDefaults() Store {
	if s.DSN != "" {
		return s
	}
	switch s.Driver {
	case "file":
		s.DSN = filepath.Join(".critpath", "graph.json")
	case "sqlite":
		s.DSN = filepath.Join(".critpath", "critpath.db")
	case "neo4j":
		s.DSN = envStr("NEO4J_URI", "bolt://localhost:7687")
	}
	return s
}

// ParseLevel maps a level name onto a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// NewLogger returns a text logger on stderr at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
