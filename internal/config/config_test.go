package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: memory
jwt:
  secret: s3cret
aws:
  upload_timeout: 30s
matching:
  deterministic_ids: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.AWS.UploadTimeout)
	assert.Equal(t, 30, cfg.JWT.TTLDays)
	assert.True(t, cfg.Matching.DeterministicIDs)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: from-file\n")
	t.Setenv("SPARK_JWT_SECRET", "from-env")
	t.Setenv("SPARK_PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SPARK_JWT_SECRET", "x")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.AWS.UploadTimeout)
	assert.Equal(t, 10000, cfg.Matching.DeckSize)
	assert.Equal(t, time.Hour, cfg.Matching.DeckTTL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate(), "missing jwt secret")

	cfg.JWT.Secret = "x"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mongo"
	assert.Error(t, cfg.Validate(), "mongo needs a uri")

	cfg.Database.MongoURI = "mongodb://localhost:27017"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = DriverMemory
	cfg.Matching.DeckTTL = 0
	assert.Error(t, cfg.Validate(), "deck ttl must be positive")
}

func TestInvalidPortEnv(t *testing.T) {
	t.Setenv("SPARK_JWT_SECRET", "x")
	t.Setenv("SPARK_PORT", "abc")

	_, err := Load("")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", db.DSN())

	db.URL = "postgres://x"
	assert.Equal(t, "postgres://x", db.DSN())
}
