package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ============================================================================
// Defaults
// ============================================================================

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Engine != EngineMemory {
		t.Errorf("Engine = %q, want %q", cfg.Store.Engine, EngineMemory)
	}
	if cfg.Store.DataDir != "./data" {
		t.Errorf("DataDir = %q, want ./data", cfg.Store.DataDir)
	}
	if cfg.Store.VectorLength != 3 {
		t.Errorf("VectorLength = %d, want 3", cfg.Store.VectorLength)
	}
	if cfg.Store.IDStrategy != "random" {
		t.Errorf("IDStrategy = %q, want random", cfg.Store.IDStrategy)
	}
	if cfg.Store.SyncWrites {
		t.Error("SyncWrites should default to false")
	}
	if cfg.Index.Metric != "euclidean" {
		t.Errorf("Metric = %q, want euclidean", cfg.Index.Metric)
	}
	if cfg.Cache.Size != 1000 {
		t.Errorf("Cache.Size = %d, want 1000", cfg.Cache.Size)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL = %s, want 5m", cfg.Cache.TTL)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != FormatText {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, FormatText)
	}
	if cfg.Logging.File != "" {
		t.Errorf("Logging.File = %q, want no default log file", cfg.Logging.File)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

// ============================================================================
// YAML Loading
// ============================================================================

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munindb.yaml")
	content := `store:
  engine: sqlite
  vector_length: 128
cache:
  ttl: 90s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	// Overridden by the file.
	if cfg.Store.Engine != EngineSQLite {
		t.Errorf("Engine = %q, want sqlite", cfg.Store.Engine)
	}
	if cfg.Store.VectorLength != 128 {
		t.Errorf("VectorLength = %d, want 128", cfg.Store.VectorLength)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %s, want 90s", cfg.Cache.TTL)
	}

	// Untouched keys keep their defaults.
	if cfg.Store.DataDir != "./data" {
		t.Errorf("DataDir = %q, want default ./data", cfg.Store.DataDir)
	}
	if cfg.Store.IDStrategy != "random" {
		t.Errorf("IDStrategy = %q, want default random", cfg.Store.IDStrategy)
	}
	if cfg.Cache.Size != 1000 {
		t.Errorf("Cache.Size = %d, want default 1000", cfg.Cache.Size)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("store: [not a mapping"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadConfigOrDefault(t *testing.T) {
	cfg := LoadConfigOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg.Store.Engine != EngineMemory {
		t.Errorf("Engine = %q, want default memory", cfg.Store.Engine)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munindb.yaml")
	if err := os.WriteFile(path, []byte(ExampleConfigYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("example config should validate: %v", err)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL = %s, want 5m", cfg.Cache.TTL)
	}
	if cfg.Store.VectorLength != 3 {
		t.Errorf("VectorLength = %d, want 3", cfg.Store.VectorLength)
	}
}

// ============================================================================
// Environment Overrides
// ============================================================================

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MUNINDB_ENGINE", "badger")
	t.Setenv("MUNINDB_DATA_DIR", "/var/lib/munindb")
	t.Setenv("MUNINDB_VECTOR_LENGTH", "768")
	t.Setenv("MUNINDB_ID_STRATEGY", "sequential")
	t.Setenv("MUNINDB_SYNC_WRITES", "yes")
	t.Setenv("MUNINDB_METRIC", "cosine")
	t.Setenv("MUNINDB_CACHE_SIZE", "50")
	t.Setenv("MUNINDB_CACHE_TTL", "30s")
	t.Setenv("MUNINDB_LOG_LEVEL", "debug")
	t.Setenv("MUNINDB_LOG_FORMAT", "json")
	t.Setenv("MUNINDB_LOG_FILE", "/var/log/munindb.log")

	cfg := LoadFromEnv()

	if cfg.Store.Engine != EngineBadger {
		t.Errorf("Engine = %q, want badger", cfg.Store.Engine)
	}
	if cfg.Store.DataDir != "/var/lib/munindb" {
		t.Errorf("DataDir = %q", cfg.Store.DataDir)
	}
	if cfg.Store.VectorLength != 768 {
		t.Errorf("VectorLength = %d, want 768", cfg.Store.VectorLength)
	}
	if cfg.Store.IDStrategy != "sequential" {
		t.Errorf("IDStrategy = %q, want sequential", cfg.Store.IDStrategy)
	}
	if !cfg.Store.SyncWrites {
		t.Error("SyncWrites should be true")
	}
	if cfg.Index.Metric != "cosine" {
		t.Errorf("Metric = %q, want cosine", cfg.Index.Metric)
	}
	if cfg.Cache.Size != 50 {
		t.Errorf("Cache.Size = %d, want 50", cfg.Cache.Size)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %s, want 30s", cfg.Cache.TTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != FormatJSON {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Logging.File != "/var/log/munindb.log" {
		t.Errorf("Logging.File = %q, want /var/log/munindb.log", cfg.Logging.File)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("env config should validate: %v", err)
	}
}

func TestEnvTakesPrecedenceOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munindb.yaml")
	content := `store:
  engine: badger
  vector_length: 64
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MUNINDB_ENGINE", "sqlite")

	cfg := LoadFromEnvOrFile(path)

	if cfg.Store.Engine != EngineSQLite {
		t.Errorf("Engine = %q, want sqlite (env over file)", cfg.Store.Engine)
	}
	if cfg.Store.VectorLength != 64 {
		t.Errorf("VectorLength = %d, want 64 (file over default)", cfg.Store.VectorLength)
	}
}

func TestEnvIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("MUNINDB_VECTOR_LENGTH", "lots")
	t.Setenv("MUNINDB_SYNC_WRITES", "maybe")
	t.Setenv("MUNINDB_CACHE_TTL", "soon")

	cfg := LoadFromEnv()

	if cfg.Store.VectorLength != 3 {
		t.Errorf("VectorLength = %d, want default 3", cfg.Store.VectorLength)
	}
	if cfg.Store.SyncWrites {
		t.Error("SyncWrites should keep its default false")
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL = %s, want default 5m", cfg.Cache.TTL)
	}
}

// ============================================================================
// Validation
// ============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"badger engine", func(c *Config) { c.Store.Engine = EngineBadger }, false},
		{"empty metric", func(c *Config) { c.Index.Metric = "" }, false},
		{"l2 metric alias", func(c *Config) { c.Index.Metric = "l2" }, false},
		{"empty id strategy", func(c *Config) { c.Store.IDStrategy = "" }, false},
		{"unknown engine", func(c *Config) { c.Store.Engine = "etcd" }, true},
		{"empty engine", func(c *Config) { c.Store.Engine = "" }, true},
		{"persistent engine without data dir", func(c *Config) {
			c.Store.Engine = EngineBadger
			c.Store.DataDir = ""
		}, true},
		{"zero vector length", func(c *Config) { c.Store.VectorLength = 0 }, true},
		{"negative vector length", func(c *Config) { c.Store.VectorLength = -4 }, true},
		{"unknown id strategy", func(c *Config) { c.Store.IDStrategy = "snowflake" }, true},
		{"unknown metric", func(c *Config) { c.Index.Metric = "manhattan" }, true},
		{"negative cache size", func(c *Config) { c.Cache.Size = -1 }, true},
		{"negative cache ttl", func(c *Config) { c.Cache.TTL = -time.Second }, true},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"unknown log format", func(c *Config) { c.Logging.Format = "logfmt" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

// ============================================================================
// Boolean Parsing
// ============================================================================

func TestParseBool(t *testing.T) {
	truthy := []string{"true", "TRUE", "1", "yes", "on", " On "}
	for _, s := range truthy {
		if !parseBool(s, false) {
			t.Errorf("parseBool(%q) = false, want true", s)
		}
	}

	falsy := []string{"false", "FALSE", "0", "no", "off", " Off "}
	for _, s := range falsy {
		if parseBool(s, true) {
			t.Errorf("parseBool(%q) = true, want false", s)
		}
	}

	if !parseBool("maybe", true) {
		t.Error("unparseable value should return the default (true)")
	}
	if parseBool("maybe", false) {
		t.Error("unparseable value should return the default (false)")
	}
}
