package config

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CRITPATH_DB_DRIVER", "")
	t.Setenv("CRITPATH_MAX_PATHS", "")
	t.Setenv("CRITPATH_MAX_VISITED", "")
	t.Setenv("CRITPATH_DATABASE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 100, cfg.MaxPaths)
	assert.Equal(t, 1000000, cfg.MaxVisited)
	assert.Empty(t, cfg.Store.Database)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CRITPATH_DB_DRIVER", "postgres")
	t.Setenv("CRITPATH_DSN", "postgres://localhost/critpath?sslmode=disable")
	t.Setenv("CRITPATH_MAX_PATHS", "25")
	t.Setenv("CRITPATH_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 25, cfg.MaxPaths)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_S3Credentials(t *testing.T) {
	t.Setenv("CRITPATH_DB_DRIVER", "")
	t.Setenv("CRITPATH_S3_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("CRITPATH_S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("CRITPATH_S3_SESSION_TOKEN", "token")
	t.Setenv("CRITPATH_S3_ENDPOINT", "http://localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "AKIDEXAMPLE", cfg.S3AccessKey)
	assert.Equal(t, "secret", cfg.S3SecretKey)
	assert.Equal(t, "token", cfg.S3Session)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
}

func TestLoad_S3KeyWithoutSecret(t *testing.T) {
	t.Setenv("CRITPATH_DB_DRIVER", "")
	t.Setenv("CRITPATH_S3_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("CRITPATH_S3_SECRET_ACCESS_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MaxVisited(t *testing.T) {
	t.Setenv("CRITPATH_DB_DRIVER", "")
	t.Setenv("CRITPATH_MAX_VISITED", "5000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.MaxVisited)
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("CRITPATH_DB_DRIVER", "")
	t.Setenv("CRITPATH_MAX_PATHS", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MaxPaths)
}

func TestValidate(t *testing.T) {
	base := Config{Store: Store{Driver: "file"}, LogLevel: "info"}
	require.NoError(t, base.Validate())

	bad := base
	bad.Store.Driver = "oracle"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Store.Driver = "mongo"
	assert.Error(t, bad.Validate(), "mongo without a DSN")

	bad = base
	bad.MaxPaths = -1
	assert.Error(t, bad.Validate())

	bad = base
	bad.MaxVisited = -1
	assert.Error(t, bad.Validate())

	bad = base
	bad.S3SecretKey = "secret"
	assert.Error(t, bad.Validate(), "secret without an access key")

	bad = base
	bad.LogLevel = "chatty"
	assert.Error(t, bad.Validate())
}

func TestStore_WithDefaults(t *testing.T) {
	t.Setenv("NEO4J_URI", "")

	assert.Equal(t, filepath.Join(".critpath", "graph.json"), Store{Driver: "file"}.WithDefaults().DSN)
	assert.Equal(t, filepath.Join(".critpath", "critpath.db"), Store{Driver: "sqlite"}.WithDefaults().DSN)
	assert.Equal(t, "bolt://localhost:7687", Store{Driver: "neo4j"}.WithDefaults().DSN)
	assert.Equal(t, "custom.db", Store{Driver: "sqlite", DSN: "custom.db"}.WithDefaults().DSN)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
