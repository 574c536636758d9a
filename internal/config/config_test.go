package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(10_000_000), cfg.Upload.MaxBytes)
	assert.Equal(t, 300, cfg.Codec.Width)
	assert.Equal(t, 300, cfg.Codec.Height)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
  read_timeout: 15s
database:
  driver: sqlite
  dsn: /tmp/capture.db
storage:
  root: /var/lib/capture
  base_url: https://capture.example/
codec:
  width: 500
  height: 500
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/var/lib/capture", cfg.Storage.Root)
	assert.Equal(t, 500, cfg.Codec.Width)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("STORAGE_ROOT", "/srv/pieces")
	t.Setenv("BASE_URL", "https://docs.example")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "/srv/pieces", cfg.Storage.Root)
	assert.Equal(t, "https://docs.example", cfg.Storage.BaseURL)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: mysql\ncodec:\n  width: -1\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
	assert.Contains(t, err.Error(), "codec width")
}

func TestPostgresDSN(t *testing.T) {
	d := InitializeDefaultConfig().Database
	assert.Contains(t, d.PostgresDSN(), "dbname=doc_capture")

	d.DSN = "postgres://u:p@db/x"
	assert.Equal(t, "postgres://u:p@db/x", d.PostgresDSN())
}
