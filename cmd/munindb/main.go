// Package main provides the MuninDB CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/munindb/pkg/config"
	"github.com/orneryd/munindb/pkg/convert"
	"github.com/orneryd/munindb/pkg/logger"
	"github.com/orneryd/munindb/pkg/munindb"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "munindb",
		Short: "MuninDB - Embedded Graph Store with Vector Search",
		Long: `MuninDB is an embedded graph store written in Go: nodes with JSON
properties and fixed-length embeddings, typed weighted edges, and exact
nearest-neighbor search over the stored vectors.

Features:
  • Three storage engines: memory, badger, sqlite
  • Exact k-nearest-neighbor search (Euclidean or cosine)
  • Cascading delete with referential integrity
  • Portable JSON snapshots with checksummed manifests
  • Declarative graph queries on the sqlite engine`,
	}
	rootCmd.PersistentFlags().String("config", "./munindb.yaml", "Config file path")
	rootCmd.PersistentFlags().String("engine", "", "Storage engine: memory, badger, or sqlite (overrides config)")
	rootCmd.PersistentFlags().String("data-dir", "./data", "Data directory (overrides config)")
	rootCmd.PersistentFlags().Int("vector-length", 0, "Embedding length (overrides config)")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("MuninDB v%s (%s)\n", version, commit)
		},
	})

	// Init command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a starter config file and create the data directory",
		RunE:  runInit,
	})

	// Stats command
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE:  runStats,
	}
	statsCmd.Flags().Bool("json", false, "Print statistics as JSON")
	rootCmd.AddCommand(statsCmd)

	// Export command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "export [directory]",
		Short: "Write a snapshot of the store to a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	})

	// Import command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "import [directory]",
		Short: "Load a snapshot directory into the store",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	})

	// Dump command (pipe-friendly JSON on stdout)
	rootCmd.AddCommand(&cobra.Command{
		Use:       "dump [nodes|edges]",
		Short:     "Print all nodes or edges as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"nodes", "edges"},
		RunE:      runDump,
	})

	// Search command
	searchCmd := &cobra.Command{
		Use:   "search [vector]",
		Short: "Find the nodes nearest to a JSON vector",
		Example: `  munindb search '[0.1, 0.2, 0.3]'
  munindb search '[0.1, 0.2, 0.3]' --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}
	searchCmd.Flags().Int("limit", 5, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)

	// Query command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "query [query]",
		Short: "Run a declarative graph query (sqlite engine only)",
		Example: `  munindb query 'MATCH (n:Person {name: "George Washington"}) RETURN n'
  munindb query 'MATCH (a)-[r:KNOWS]->(b) RETURN a.id, b.id'`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the file named by --config (environment variables take
// precedence), applies explicit flag overrides, and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.LoadFromEnvOrFile(path)

	if cmd.Flags().Changed("engine") {
		cfg.Store.Engine, _ = cmd.Flags().GetString("engine")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Store.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("vector-length") {
		cfg.Store.VectorLength, _ = cmd.Flags().GetInt("vector-length")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildLogger turns the logging section of the config into a slog logger.
// When logging.file is set, records fan out to the console handler and a
// JSON log file; the file handle lives for the rest of the process.
func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := []logger.Option{logger.WithLevel(level)}
	switch cfg.Logging.Format {
	case config.FormatJSON:
		opts = append(opts, logger.WithJSON(true))
	case config.FormatPretty:
		opts = append(opts, logger.WithPretty(true))
	}
	console := logger.New(opts...)

	if cfg.Logging.File == "" {
		return console, nil
	}
	f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	fileLog := logger.New(logger.WithWriter(f), logger.WithJSON(true), logger.WithLevel(level))
	return logger.Multi(console, fileLog), nil
}

// openStore maps the file config onto the store config and opens it. The
// memory engine opens with an empty path; badger owns the data directory;
// sqlite keeps a single database file inside it.
func openStore(cfg *config.Config, log *slog.Logger) (*munindb.DB, error) {
	dbCfg := &munindb.Config{
		VectorLength: cfg.Store.VectorLength,
		IDStrategy:   cfg.Store.IDStrategy,
		Metric:       cfg.Index.Metric,
		SyncWrites:   cfg.Store.SyncWrites,
		CacheSize:    cfg.Cache.Size,
		CacheTTL:     cfg.Cache.TTL,
		Logger:       log,
	}

	var path string
	switch cfg.Store.Engine {
	case config.EngineMemory, "":
		path = ""
	case config.EngineBadger:
		dbCfg.Engine = munindb.EngineBadger
		path = cfg.Store.DataDir
	case config.EngineSQLite:
		dbCfg.Engine = munindb.EngineSQLite
		path = filepath.Join(cfg.Store.DataDir, "munindb.sqlite")
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Store.Engine)
	}

	db, err := munindb.Open(path, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return db, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	fmt.Printf("📂 Initializing MuninDB in %s\n", dataDir)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}
	if err := os.WriteFile(configPath, []byte(config.ExampleConfigYAML), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println("✅ Store initialized")
	fmt.Printf("   Config: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit %s (pick an engine, set vector_length)\n", configPath)
	fmt.Println("  2. Load a snapshot:  munindb import ./snapshot-dir")
	fmt.Println("  3. Inspect it:       munindb stats")

	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	db, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("reading statistics: %w", err)
	}

	if asJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("📊 MuninDB statistics")
	fmt.Printf("   Engine:        %s\n", stats.Engine)
	fmt.Printf("   Vector length: %d\n", stats.VectorLength)
	fmt.Printf("   Nodes:         %d\n", stats.Nodes)
	fmt.Printf("   Edges:         %d\n", stats.Edges)
	if stats.Index.Built {
		freshness := "fresh"
		if stats.Index.Stale {
			freshness = "stale"
		}
		fmt.Printf("   Index:         built, %s (%d vectors, %s)\n",
			freshness, stats.Index.Size, stats.Index.Metric)
	} else {
		fmt.Printf("   Index:         not built (%s)\n", stats.Index.Metric)
	}
	fmt.Printf("   Query cache:   %d/%d entries, %d hits, %d misses\n",
		stats.QueryCache.Size, stats.QueryCache.MaxSize,
		stats.QueryCache.Hits, stats.QueryCache.Misses)
	if len(stats.Types) > 0 {
		fmt.Printf("   Node types:    %s\n", strings.Join(stats.Types, ", "))
	}
	if len(stats.Relations) > 0 {
		fmt.Printf("   Relations:     %s\n", strings.Join(stats.Relations, ", "))
	}

	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	db, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Printf("📤 Exporting snapshot to %s\n", dir)
	start := time.Now()
	if err := db.Export(ctx, dir); err != nil {
		return fmt.Errorf("exporting: %w", err)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading statistics: %w", err)
	}
	fmt.Printf("✅ Exported %d nodes, %d edges in %v\n",
		stats.Nodes, stats.Edges, time.Since(start).Round(time.Millisecond))

	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("snapshot directory not found: %s", dir)
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	db, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Printf("📥 Importing snapshot from %s\n", dir)
	start := time.Now()
	if err := db.Import(ctx, dir); err != nil {
		return fmt.Errorf("importing: %w", err)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading statistics: %w", err)
	}
	fmt.Printf("✅ Store now holds %d nodes, %d edges (loaded in %v)\n",
		stats.Nodes, stats.Edges, time.Since(start).Round(time.Millisecond))

	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	db, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	var data []byte
	switch args[0] {
	case "nodes":
		data, err = db.NodesToJSON(ctx)
	case "edges":
		data, err = db.EdgesToJSON(ctx)
	default:
		return fmt.Errorf("unknown dump target %q (want nodes or edges)", args[0])
	}
	if err != nil {
		return fmt.Errorf("dumping %s: %w", args[0], err)
	}

	// Raw JSON on stdout so output pipes cleanly into jq and friends.
	fmt.Println(string(data))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	// The vector arrives as a JSON array; elements decode as float64 and
	// are coerced into the store's embedding type in one strict pass.
	var raw any
	if err := json.Unmarshal([]byte(args[0]), &raw); err != nil {
		return fmt.Errorf("parsing vector: %w", err)
	}
	vec := convert.ToFloat32Slice(raw)
	if vec == nil {
		return fmt.Errorf("vector must be a JSON array of numbers, got %s", args[0])
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	db, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	results, err := db.NearestNodes(ctx, vec, limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	for i, r := range results {
		fmt.Printf("%2d. %s  distance=%.4f", i+1, r.Node.ID, r.Distance)
		if r.Node.Type != "" {
			fmt.Printf("  type=%s", r.Node.Type)
		}
		fmt.Println()
	}
	fmt.Fprintf(os.Stderr, "%d result(s)\n", len(results))

	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	db, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := db.Query(ctx, args[0])
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	for i, col := range result.Columns {
		if i > 0 {
			fmt.Print("\t")
		}
		fmt.Print(col)
	}
	fmt.Println()
	for _, row := range result.Rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Print("\t")
			}
			fmt.Printf("%v", cell)
		}
		fmt.Println()
	}
	fmt.Fprintf(os.Stderr, "%d row(s)\n", len(result.Rows))

	return nil
}
