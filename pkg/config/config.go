// Package config handles runic configuration via YAML files and
// environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Environment variables (RUNIC_*)
//  2. Config file (runic.yaml)
//  3. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Environment Variables (all use RUNIC_ prefix):
//
// Storage:
//   - RUNIC_STORAGE_BACKEND="memory", "badger" or "redis"
//   - RUNIC_DATA_DIR="./data"
//   - RUNIC_REDIS_ADDR="localhost:6379"
//   - RUNIC_REDIS_PASSWORD=""
//   - RUNIC_REDIS_DB=0
//
// Vector index:
//   - RUNIC_VECTOR_BACKEND="memory" or "weaviate"
//   - RUNIC_VECTOR_URL="http://localhost:8080"
//   - RUNIC_VECTOR_CLASS="RunicSymbol"
//   - RUNIC_EMBED_DIMS=256
//
// Search:
//   - RUNIC_SEARCH_LIMIT=10
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageBadger = "badger"
	StorageRedis  = "redis"
)

// Vector backends.
const (
	VectorMemory   = "memory"
	VectorWeaviate = "weaviate"
)

// Config holds all runic configuration.
type Config struct {
	// Storage selects the key-value backend.
	Storage StorageConfig `yaml:"storage"`

	// Vector selects the vector-index backend.
	Vector VectorConfig `yaml:"vector"`

	// Search tunes the hybrid search coordinator.
	Search SearchConfig `yaml:"search"`
}

// StorageConfig holds key-value backend settings.
type StorageConfig struct {
	// Backend is one of memory, badger, redis.
	Backend string `yaml:"backend"`
	// DataDir is the badger data directory.
	DataDir string `yaml:"data_dir"`
	// RedisAddr is the redis host:port.
	RedisAddr string `yaml:"redis_addr"`
	// RedisPassword authenticates against redis. Usually supplied via
	// RUNIC_REDIS_PASSWORD rather than the file.
	RedisPassword string `yaml:"redis_password"`
	// RedisDB selects the redis logical database.
	RedisDB int `yaml:"redis_db"`
}

// VectorConfig holds vector-index backend settings.
type VectorConfig struct {
	// Backend is one of memory, weaviate.
	Backend string `yaml:"backend"`
	// URL is the weaviate server URL.
	URL string `yaml:"url"`
	// Class overrides the weaviate class name.
	Class string `yaml:"class"`
	// EmbedDims is the hash-embedder dimensionality for the memory backend.
	EmbedDims int `yaml:"embed_dims"`
}

// SearchConfig holds search settings.
type SearchConfig struct {
	// DefaultLimit applies when a search request sets no limit.
	DefaultLimit int `yaml:"default_limit"`
}

// Default returns the built-in configuration: in-memory storage, in-memory
// vector index.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:   StorageMemory,
			DataDir:   "./data",
			RedisAddr: "localhost:6379",
		},
		Vector: VectorConfig{
			Backend:   VectorMemory,
			URL:       "http://localhost:8080",
			EmbedDims: 256,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
		},
	}
}

// FindConfigFile returns the first config file that exists among the
// conventional locations, or "" when none does.
func FindConfigFile() string {
	candidates := []string{
		"runic.yaml",
		"runic.yml",
		"config/runic.yaml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, home+"/.runic/runic.yaml")
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Load builds the configuration without a file: defaults, then environment
// overrides, then validation.
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile builds the configuration: defaults, then the YAML file at
// path (skipped when path is empty), then environment overrides, then
// validation.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString(&c.Storage.Backend, "RUNIC_STORAGE_BACKEND")
	setString(&c.Storage.DataDir, "RUNIC_DATA_DIR")
	setString(&c.Storage.RedisAddr, "RUNIC_REDIS_ADDR")
	setString(&c.Storage.RedisPassword, "RUNIC_REDIS_PASSWORD")
	setInt(&c.Storage.RedisDB, "RUNIC_REDIS_DB")

	setString(&c.Vector.Backend, "RUNIC_VECTOR_BACKEND")
	setString(&c.Vector.URL, "RUNIC_VECTOR_URL")
	setString(&c.Vector.Class, "RUNIC_VECTOR_CLASS")
	setInt(&c.Vector.EmbedDims, "RUNIC_EMBED_DIMS")

	setInt(&c.Search.DefaultLimit, "RUNIC_SEARCH_LIMIT")
}

// Validate checks backend names and numeric ranges.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageMemory, StorageBadger, StorageRedis:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == StorageBadger && c.Storage.DataDir == "" {
		return fmt.Errorf("badger backend requires data_dir")
	}
	if c.Storage.Backend == StorageRedis && c.Storage.RedisAddr == "" {
		return fmt.Errorf("redis backend requires redis_addr")
	}

	switch c.Vector.Backend {
	case VectorMemory, VectorWeaviate:
	default:
		return fmt.Errorf("unknown vector backend %q", c.Vector.Backend)
	}
	if c.Vector.Backend == VectorWeaviate && c.Vector.URL == "" {
		return fmt.Errorf("weaviate backend requires url")
	}

	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search default_limit must be positive")
	}
	return nil
}
