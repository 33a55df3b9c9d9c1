package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, VectorMemory, cfg.Vector.Backend)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runic.yaml")
	data := `
storage:
  backend: badger
  data_dir: /var/lib/runic
vector:
  backend: weaviate
  url: http://weaviate:8080
search:
  default_limit: 25
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, StorageBadger, cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/runic", cfg.Storage.DataDir)
	assert.Equal(t, VectorWeaviate, cfg.Vector.Backend)
	assert.Equal(t, "http://weaviate:8080", cfg.Vector.URL)
	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	// Untouched sections keep defaults.
	assert.Equal(t, "localhost:6379", cfg.Storage.RedisAddr)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: memory\n"), 0o644))

	t.Setenv("RUNIC_STORAGE_BACKEND", "redis")
	t.Setenv("RUNIC_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("RUNIC_SEARCH_LIMIT", "5")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, StorageRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis.internal:6380", cfg.Storage.RedisAddr)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "etcd"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Vector.Backend = "pinecone"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Search.DefaultLimit = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := LoadFromFile("/does/not/exist.yaml")
	assert.Error(t, err)
}
