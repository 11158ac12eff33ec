// Package config loads MuninDB configuration for the CLI and for
// embedders that want file or environment driven setup.
//
// Configuration can come from three places, lowest to highest precedence:
//
//   - Built-in defaults (DefaultConfig)
//   - A YAML configuration file (LoadConfig)
//   - Environment variables (LoadFromEnv, LoadFromEnvOrFile)
//
// Environment Variables:
//
//	MUNINDB_ENGINE        - Storage engine: memory, badger, sqlite (default: memory)
//	MUNINDB_DATA_DIR      - Directory for engine files (default: ./data)
//	MUNINDB_VECTOR_LENGTH - Embedding length enforced on every node (default: 3)
//	MUNINDB_ID_STRATEGY   - Identifier allocation: random, sequential (default: random)
//	MUNINDB_SYNC_WRITES   - Fsync each badger write (default: false)
//	MUNINDB_METRIC        - Similarity metric: euclidean, cosine (default: euclidean)
//	MUNINDB_CACHE_SIZE    - Max cached query translations, 0 for the built-in default
//	MUNINDB_CACHE_TTL     - Cached translation lifetime, e.g. 90s or 5m (default: 5m)
//	MUNINDB_LOG_LEVEL     - Log level: debug, info, warn, error (default: info)
//	MUNINDB_LOG_FORMAT    - Log format: text, json, pretty (default: text)
//	MUNINDB_LOG_FILE      - JSON log file appended alongside console output (default: off)
//
// Example:
//
//	MUNINDB_ENGINE=sqlite MUNINDB_DATA_DIR=/var/lib/munindb munindb stats
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/munindb/pkg/ident"
	"github.com/orneryd/munindb/pkg/math/vector"
)

// Storage engines accepted by StoreConfig.Engine.
const (
	EngineMemory = "memory"
	EngineBadger = "badger"
	EngineSQLite = "sqlite"
)

// Log formats accepted by LoggingConfig.Format.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

// Config is the full configuration tree for a MuninDB store and the CLI
// around it. Zero values are not meaningful on their own; start from
// DefaultConfig (the loaders do) and override.
//
// Example:
//
//	// Load from environment (Docker/K8s friendly)
//	cfg := config.LoadFromEnv()
//
//	// Or file first, environment on top
//	cfg := config.LoadFromEnvOrFile("./munindb.yaml")
//
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Index   IndexConfig   `yaml:"index"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects and shapes the storage engine.
type StoreConfig struct {
	// Engine is the storage backend: memory, badger, or sqlite.
	Engine string `yaml:"engine"`
	// DataDir holds engine files for badger and sqlite. Ignored by memory.
	DataDir string `yaml:"data_dir"`
	// VectorLength is the embedding length enforced on every node.
	VectorLength int `yaml:"vector_length"`
	// IDStrategy picks identifier allocation: random or sequential.
	IDStrategy string `yaml:"id_strategy"`
	// SyncWrites fsyncs each badger write before acknowledging it.
	SyncWrites bool `yaml:"sync_writes"`
}

// IndexConfig shapes the similarity index.
type IndexConfig struct {
	// Metric is the distance function: euclidean or cosine.
	Metric string `yaml:"metric"`
}

// CacheConfig shapes the translated-query cache.
type CacheConfig struct {
	// Size is the maximum number of cached translations.
	// 0 uses the built-in default.
	Size int `yaml:"size"`
	// TTL is how long a cached translation stays valid.
	// 0 uses the built-in default.
	TTL time.Duration `yaml:"ttl"`
}

// LoggingConfig shapes CLI logging.
type LoggingConfig struct {
	// Level is the minimum level logged: debug, info, warn, or error.
	Level string `yaml:"level"`
	// Format selects the handler: text, json, or pretty.
	Format string `yaml:"format"`
	// File, when set, appends JSON records to this path in addition to
	// the console handler.
	File string `yaml:"file"`
}

// DefaultConfig returns the built-in defaults: an in-memory store with
// three-dimensional embeddings, random identifiers, and Euclidean distance.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Engine:       EngineMemory,
			DataDir:      "./data",
			VectorLength: 3,
			IDStrategy:   string(ident.StrategyRandom),
			SyncWrites:   false,
		},
		Index: IndexConfig{
			Metric: vector.Euclidean.String(),
		},
		Cache: CacheConfig{
			Size: 1000,
			TTL:  5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: FormatText,
		},
	}
}

// LoadConfig loads configuration from a YAML file. Keys absent from the
// file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigOrDefault loads config from file, or returns the defaults if
// the file cannot be read.
func LoadConfigOrDefault(path string) *Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// LoadFromEnv loads configuration from MUNINDB_* environment variables on
// top of the defaults.
//
// This is the recommended approach for Docker/Kubernetes deployments.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadFromEnvOrFile loads config from the file (or defaults), then applies
// environment variables. Environment variables take precedence over file
// settings.
func LoadFromEnvOrFile(path string) *Config {
	cfg := LoadConfigOrDefault(path)
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	c.Store.Engine = getEnv("MUNINDB_ENGINE", c.Store.Engine)
	c.Store.DataDir = getEnv("MUNINDB_DATA_DIR", c.Store.DataDir)
	c.Store.VectorLength = getEnvInt("MUNINDB_VECTOR_LENGTH", c.Store.VectorLength)
	c.Store.IDStrategy = getEnv("MUNINDB_ID_STRATEGY", c.Store.IDStrategy)
	c.Store.SyncWrites = getEnvBool("MUNINDB_SYNC_WRITES", c.Store.SyncWrites)
	c.Index.Metric = getEnv("MUNINDB_METRIC", c.Index.Metric)
	c.Cache.Size = getEnvInt("MUNINDB_CACHE_SIZE", c.Cache.Size)
	c.Cache.TTL = getEnvDuration("MUNINDB_CACHE_TTL", c.Cache.TTL)
	c.Logging.Level = getEnv("MUNINDB_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("MUNINDB_LOG_FORMAT", c.Logging.Format)
	c.Logging.File = getEnv("MUNINDB_LOG_FILE", c.Logging.File)
}

// Validate reports the first problem with the configuration, or nil.
func (c *Config) Validate() error {
	switch c.Store.Engine {
	case EngineMemory, EngineBadger, EngineSQLite:
	default:
		return fmt.Errorf("unknown storage engine %q (want memory, badger, or sqlite)", c.Store.Engine)
	}
	if c.Store.Engine != EngineMemory && c.Store.DataDir == "" {
		return fmt.Errorf("data_dir is required for the %s engine", c.Store.Engine)
	}
	if c.Store.VectorLength <= 0 {
		return fmt.Errorf("vector_length must be positive, got %d", c.Store.VectorLength)
	}
	switch ident.Strategy(c.Store.IDStrategy) {
	case "", ident.StrategySequential, ident.StrategyRandom:
	default:
		return fmt.Errorf("unknown id strategy %q (want random or sequential)", c.Store.IDStrategy)
	}
	if _, err := vector.ParseMetric(c.Index.Metric); err != nil {
		return err
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache size must not be negative, got %d", c.Cache.Size)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.Cache.TTL)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case FormatText, FormatJSON, FormatPretty:
	default:
		return fmt.Errorf("unknown log format %q (want text, json, or pretty)", c.Logging.Format)
	}
	return nil
}

// getEnv returns the environment value for key, or fallback when unset
// or empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvInt parses an integer environment value. Unset, empty, or
// unparseable values return fallback.
func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvBool parses a boolean environment value. Accepts true/1/yes/on
// and false/0/no/off; anything else returns fallback.
func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		return parseBool(value, fallback)
	}
	return fallback
}

// getEnvDuration parses a duration environment value such as "90s" or
// "5m". Unset, empty, or unparseable values return fallback.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// parseBool parses a boolean from string with a default value.
func parseBool(s string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultVal
	}
}

// ExampleConfigYAML is a commented starter configuration. `munindb init`
// writes it next to the data directory.
const ExampleConfigYAML = `# MuninDB configuration
# Every value here is overridden by the matching MUNINDB_* environment
# variable when set.

store:
  engine: memory       # memory | badger | sqlite
  data_dir: ./data     # engine files for badger and sqlite
  vector_length: 3     # embedding length enforced on every node
  id_strategy: random  # random | sequential
  sync_writes: false   # fsync each badger write

index:
  metric: euclidean    # euclidean | cosine

cache:
  size: 1000           # max cached query translations
  ttl: 5m              # how long a translation stays cached

logging:
  level: info          # debug | info | warn | error
  format: text         # text | json | pretty
  # file: munindb.log  # append JSON records here as well
`
