package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7700, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 1500*time.Millisecond, cfg.Search.Cutoff)
	assert.Equal(t, 1000, cfg.Scheduler.Capacity)
	assert.Equal(t, 16, cfg.Scheduler.Workers)
	assert.True(t, cfg.Index.PrefixSearch)
	assert.Equal(t, "index-mutations", cfg.Kafka.Topics.IndexMutations)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7701
search:
  cutoff: 250ms
scheduler:
  capacity: 64
  workers: 8
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7701, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Search.Cutoff)
	assert.Equal(t, 64, cfg.Scheduler.Capacity)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
	// untouched sections keep their defaults
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LN_SERVER_PORT", "9999")
	t.Setenv("LN_SEARCH_CUTOFF", "2s")
	t.Setenv("LN_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Search.Cutoff)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidation(t *testing.T) {
	t.Setenv("LN_SCHEDULER_CAPACITY", "0")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.capacity")
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5432, Database: "lantern",
		User: "u", Password: "p", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=lantern sslmode=disable", p.DSN())
}
