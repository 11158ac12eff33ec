// Package munindb provides the main API for embedded MuninDB usage.
//
// MuninDB is an embedded graph store: nodes carry schema-less JSON
// properties and a fixed-length embedding, directed weighted edges connect
// them, and exact k-nearest-neighbor search runs over the embeddings. A
// declarative graph query can be passed through to SQL-backed stores.
//
// Key Features:
//   - Nodes with arbitrary JSON properties and an optional type label
//   - Directed, typed, weighted edges with referential integrity
//   - Exact nearest-neighbor search (100% recall, Euclidean or cosine)
//   - Cascading delete: removing a node removes every incident edge
//   - Pluggable persistence: in-memory, BadgerDB, or SQLite
//   - Declarative queries translated to SQL on the SQLite engine
//   - Checksummed JSON snapshots for export and import
//
// Example Usage:
//
//	cfg := munindb.DefaultConfig()
//	cfg.VectorLength = 3
//
//	db, err := munindb.Open("", cfg) // empty path = in-memory
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	washington, err := db.InsertNode(ctx, &munindb.Node{
//		Type:       "Person",
//		Properties: map[string]any{"name": "George Washington"},
//		Embedding:  []float32{0.1, 0.2, 0.3},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	adams, _ := db.InsertNode(ctx, &munindb.Node{
//		Type:       "Person",
//		Properties: map[string]any{"name": "John Adams"},
//		Embedding:  []float32{0.4, 0.5, 0.6},
//	})
//	_, _ = db.InsertEdge(ctx, &munindb.Edge{
//		SourceID: adams, TargetID: washington, Relation: "served_under", Weight: 1.0,
//	})
//
//	// Exact embedding match comes back first with distance 0.
//	results, _ := db.NearestNodes(ctx, []float32{0.1, 0.2, 0.3}, 5)
//
//	// Traversal and attribute lookup.
//	cabinet, _ := db.ConnectedNodes(ctx, washington)
//	people, _ := db.NodesByAttribute(ctx, "name", "John Adams")
//
// Consistency Model:
//
// A single writer lock serializes mutations; reads share it. Cascading
// deletes and bulk inserts appear atomic to readers: no reader ever sees a
// deleted node with its edges still present, or half of a batch.
//
// The similarity index is a point-in-time snapshot. It is built
// automatically on the first similarity search and then serves that
// snapshot until RebuildIndex is called; node mutations in between make it
// stale, which IndexStatus reports. Searches against a stale index are
// well-defined (they answer from the last built snapshot), and callers that
// would rather fail than see stale results pass SearchOptions.RequireFresh.
package munindb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orneryd/munindb/pkg/cache"
	"github.com/orneryd/munindb/pkg/ident"
	"github.com/orneryd/munindb/pkg/index"
	"github.com/orneryd/munindb/pkg/logger"
	"github.com/orneryd/munindb/pkg/math/vector"
	"github.com/orneryd/munindb/pkg/pool"
	"github.com/orneryd/munindb/pkg/query"
	"github.com/orneryd/munindb/pkg/storage"
)

// Errors returned by DB operations. Storage-level kinds (ErrNotFound,
// ErrDuplicateID, ErrUnknownNode, ErrDimensionMismatch) are re-exported so
// callers can match them without importing pkg/storage.
var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store is closed")
	// ErrIndexStale is returned by similarity searches that require a
	// fresh index while node mutations have outrun the last build.
	ErrIndexStale = errors.New("similarity index is stale")

	// ErrIndexNotBuilt mirrors index.ErrNotBuilt.
	ErrIndexNotBuilt = index.ErrNotBuilt
	// ErrQueryNotSupported mirrors query.ErrNotSupported: the engine
	// behind this store cannot execute declarative queries.
	ErrQueryNotSupported = query.ErrNotSupported

	ErrNotFound          = storage.ErrNotFound
	ErrDuplicateID       = storage.ErrDuplicateID
	ErrUnknownNode       = storage.ErrUnknownNode
	ErrDimensionMismatch = storage.ErrDimensionMismatch
)

// Node and Edge are the storage record types, re-exported so embedders
// work entirely through this package.
type (
	Node   = storage.Node
	Edge   = storage.Edge
	NodeID = storage.NodeID
	EdgeID = storage.EdgeID
)

// Engine names for Config.Engine. The in-memory engine has no name here:
// it is selected by opening with an empty path.
const (
	EngineBadger = "badger"
	EngineSQLite = "sqlite"
)

// Config holds store configuration options.
//
// Example:
//
//	cfg := munindb.DefaultConfig()
//	cfg.VectorLength = 768
//	cfg.Metric = "cosine"
//	cfg.IDStrategy = "sequential"
//
//	db, err := munindb.Open("./data", cfg)
type Config struct {
	// Engine selects the persistent backend when Open is given a path:
	// badger (default) or sqlite. Ignored for in-memory stores.
	Engine string `yaml:"engine"`

	// VectorLength is the embedding length enforced on every node. Fixed
	// for the life of the store; reopening existing data with a different
	// value fails.
	VectorLength int `yaml:"vector_length"`

	// IDStrategy picks identifier allocation for nodes and edges:
	// random (UUIDs, the default) or sequential (decimal integers).
	IDStrategy string `yaml:"id_strategy"`

	// Metric is the similarity metric: euclidean (default) or cosine.
	Metric string `yaml:"metric"`

	// SyncWrites fsyncs each badger write before acknowledging it.
	SyncWrites bool `yaml:"sync_writes"`

	// CacheSize and CacheTTL shape the translated-query cache.
	// Zero values use the translator defaults.
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	// Logger receives store lifecycle and engine logs. Nil discards them.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the default store configuration: BadgerDB for
// persistent paths, three-dimensional embeddings, random identifiers,
// Euclidean distance.
func DefaultConfig() *Config {
	return &Config{
		Engine:       EngineBadger,
		VectorLength: 3,
		IDStrategy:   string(ident.StrategyRandom),
		Metric:       vector.Euclidean.String(),
	}
}

// DB is an open MuninDB store.
//
// All methods are safe for concurrent use. Mutations take a writer lock;
// reads and similarity searches share a reader lock, so multi-step
// operations (cascading delete, bulk insert) appear atomic to readers.
type DB struct {
	config *Config
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	engine  storage.Engine
	nodeIDs ident.Allocator
	edgeIDs ident.Allocator

	index      *index.VectorIndex
	generation atomic.Uint64

	translator *query.Translator
}

// SearchResult pairs a node with its distance from the query vector.
type SearchResult struct {
	Node     *Node   `json:"node"`
	Distance float64 `json:"distance"`
}

// SearchOptions tune a similarity search.
type SearchOptions struct {
	// RequireFresh fails the search with ErrIndexStale when node
	// mutations have outrun the last index build, instead of answering
	// from the stale snapshot.
	RequireFresh bool
}

// IndexStatus describes the similarity index relative to the store.
type IndexStatus struct {
	// Built reports whether an index snapshot exists at all.
	Built bool `json:"built"`
	// Stale reports whether node mutations happened after the last build.
	Stale bool `json:"stale"`
	// IndexedGeneration is the store generation the snapshot was built at.
	IndexedGeneration uint64 `json:"indexed_generation"`
	// CurrentGeneration is the store's current mutation generation.
	CurrentGeneration uint64 `json:"current_generation"`
	// Metric is the distance function the index ranks by.
	Metric string `json:"metric"`
	// Size is the number of vectors in the snapshot.
	Size int `json:"size"`
}

// Stats is a point-in-time summary of the store. Types and Relations list
// the distinct labels in use, sorted.
type Stats struct {
	Engine       string           `json:"engine"`
	VectorLength int              `json:"vector_length"`
	Nodes        int64            `json:"nodes"`
	Edges        int64            `json:"edges"`
	Types        []string         `json:"types,omitempty"`
	Relations    []string         `json:"relations,omitempty"`
	Index        IndexStatus      `json:"index"`
	QueryCache   cache.CacheStats `json:"query_cache"`
}

// Open opens or creates a MuninDB store.
//
// path selects the storage location:
//   - "": in-memory store, lost on Close
//   - directory path with Config.Engine == "badger" (default): BadgerDB
//   - file path with Config.Engine == "sqlite": SQLite database file
//
// config may be nil, which uses DefaultConfig. VectorLength must be
// positive. Reopening an existing store validates every stored embedding
// against VectorLength and fails with ErrDimensionMismatch on conflict, so
// a store can never hold mixed dimensionalities.
//
// Identifier allocation is seeded from existing records at open: a
// sequential store continues counting above the highest stored id instead
// of re-issuing taken ones.
//
// Example:
//
//	// Persistent store for 768-dimensional embeddings
//	cfg := munindb.DefaultConfig()
//	cfg.VectorLength = 768
//	db, err := munindb.Open("/var/lib/munindb", cfg)
//
//	// Throwaway in-memory store for tests
//	db, err := munindb.Open("", nil)
func Open(path string, config *Config) (*DB, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.VectorLength <= 0 {
		return nil, fmt.Errorf("vector length must be positive, got %d", config.VectorLength)
	}
	metric, err := vector.ParseMetric(config.Metric)
	if err != nil {
		return nil, err
	}

	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}

	nodeIDs, err := ident.New(ident.Strategy(config.IDStrategy))
	if err != nil {
		return nil, err
	}
	edgeIDs, err := ident.New(ident.Strategy(config.IDStrategy))
	if err != nil {
		return nil, err
	}

	db := &DB{
		config:     config,
		logger:     log,
		nodeIDs:    nodeIDs,
		edgeIDs:    edgeIDs,
		index:      index.New(config.VectorLength, metric),
		translator: query.NewTranslatorSized(config.CacheSize, config.CacheTTL),
	}

	switch {
	case path == "":
		db.engine = storage.NewMemoryEngine()
	default:
		switch config.Engine {
		case "", EngineBadger:
			eng, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
				DataDir:    path,
				SyncWrites: config.SyncWrites,
				Logger:     logger.Badger(log.With("component", "badger")),
			})
			if err != nil {
				return nil, fmt.Errorf("open badger store: %w", err)
			}
			db.engine = eng
		case EngineSQLite:
			eng, err := storage.NewSQLiteEngine(path)
			if err != nil {
				return nil, fmt.Errorf("open sqlite store: %w", err)
			}
			db.engine = eng
		default:
			return nil, fmt.Errorf("unknown storage engine %q (want %s or %s)", config.Engine, EngineBadger, EngineSQLite)
		}
	}

	if err := db.recover(); err != nil {
		_ = db.engine.Close()
		return nil, err
	}

	log.Debug("store opened",
		"engine", engineName(db.engine),
		"path", path,
		"vector_length", config.VectorLength,
		"id_strategy", nodeIDs.Strategy(),
		"metric", metric.String(),
	)
	return db, nil
}

// recover walks existing records: every stored embedding is validated
// against the configured vector length, and every id is folded into the
// allocators so restarts never re-issue one.
func (db *DB) recover() error {
	ctx := context.Background()

	var nodes, edges int64
	err := storage.StreamNodesWithFallback(ctx, db.engine, func(n *storage.Node) error {
		if len(n.Embedding) != 0 && len(n.Embedding) != db.config.VectorLength {
			return fmt.Errorf("stored node %s has a %d-dimensional embedding, store is configured for %d: %w",
				n.ID, len(n.Embedding), db.config.VectorLength, ErrDimensionMismatch)
		}
		db.nodeIDs.Observe(string(n.ID))
		nodes++
		return nil
	})
	if err != nil {
		return err
	}

	err = storage.StreamEdgesWithFallback(ctx, db.engine, func(e *storage.Edge) error {
		db.edgeIDs.Observe(string(e.ID))
		edges++
		return nil
	})
	if err != nil {
		return err
	}

	if nodes > 0 || edges > 0 {
		db.logger.Debug("recovered existing records", "nodes", nodes, "edges", edges)
	}
	return nil
}

// Close releases the store. Safe to call more than once; every operation
// after the first Close fails with ErrClosed.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	if err := db.engine.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	db.logger.Debug("store closed")
	return nil
}

// ============================================================================
// Node Operations
// ============================================================================

// InsertNode stores a node and returns its identifier.
//
// An empty ID is filled by the store's allocator; a caller-supplied ID that
// already exists fails with ErrDuplicateID. A nil embedding is replaced by
// the zero vector of the configured length; a present embedding of any
// other length fails with ErrDimensionMismatch before anything is written.
// The node struct is updated in place with the assigned id and embedding.
func (db *DB) InsertNode(ctx context.Context, node *Node) (NodeID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return "", ErrClosed
	}
	if node == nil {
		return "", storage.ErrInvalidData
	}
	if err := db.normalizeEmbedding(node); err != nil {
		return "", err
	}
	if node.ID == "" {
		id, err := db.nodeIDs.Allocate(db.nodeExists)
		if err != nil {
			return "", fmt.Errorf("allocate node id: %w", err)
		}
		node.ID = NodeID(id)
	}

	if err := db.engine.CreateNode(node); err != nil {
		return "", err
	}
	db.nodeIDs.Observe(string(node.ID))
	db.generation.Add(1)

	db.logger.Debug("node inserted", "id", node.ID, "type", node.Type)
	return node.ID, nil
}

// BulkInsertNodes stores a batch of nodes atomically: every record is
// validated before any is written, and a failure anywhere rejects the
// whole batch. Returned ids are in input order, with allocator-assigned
// ids filled in for nodes that had none.
func (db *DB) BulkInsertNodes(ctx context.Context, nodes []*Node) ([]NodeID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ErrClosed
	}

	for i, node := range nodes {
		if node == nil {
			return nil, fmt.Errorf("node %d: %w", i, storage.ErrInvalidData)
		}
		if err := db.normalizeEmbedding(node); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
	}
	for _, node := range nodes {
		if node.ID != "" {
			continue
		}
		id, err := db.nodeIDs.Allocate(db.nodeExists)
		if err != nil {
			return nil, fmt.Errorf("allocate node id: %w", err)
		}
		node.ID = NodeID(id)
	}

	if err := db.engine.BulkCreateNodes(nodes); err != nil {
		return nil, err
	}

	ids := make([]NodeID, len(nodes))
	for i, node := range nodes {
		db.nodeIDs.Observe(string(node.ID))
		ids[i] = node.ID
	}
	if len(nodes) > 0 {
		db.generation.Add(1)
	}

	db.logger.Debug("nodes bulk inserted", "count", len(nodes))
	return ids, nil
}

// GetNode returns the node with the given id, or ErrNotFound.
func (db *DB) GetNode(ctx context.Context, id NodeID) (*Node, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}
	return db.engine.GetNode(id)
}

// DeleteNode removes a node and cascades: every edge whose source or
// target is the node is removed with it, atomically from the point of view
// of concurrent readers. ErrNotFound when the node does not exist.
func (db *DB) DeleteNode(ctx context.Context, id NodeID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	if err := db.engine.DeleteNode(id); err != nil {
		return err
	}
	db.generation.Add(1)

	db.logger.Debug("node deleted", "id", id)
	return nil
}

// NodesByAttribute returns every node whose properties contain the key
// with an equal value. Equality follows JSON semantics: numbers compare by
// value across int/float representations, objects and arrays compare
// structurally.
func (db *DB) NodesByAttribute(ctx context.Context, key string, value any) ([]*Node, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}
	return db.engine.FindNodesByProperty(key, value)
}

// NodesByType returns every node carrying the given type label. The empty
// string selects nodes that have no label.
func (db *DB) NodesByType(ctx context.Context, nodeType string) ([]*Node, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}
	return db.engine.NodesByType(nodeType)
}

// ============================================================================
// Edge Operations
// ============================================================================

// InsertEdge stores a directed edge and returns its identifier. Both
// endpoints must exist (ErrUnknownNode otherwise); an empty ID is filled
// by the allocator, a colliding caller-supplied one fails with
// ErrDuplicateID.
func (db *DB) InsertEdge(ctx context.Context, edge *Edge) (EdgeID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return "", ErrClosed
	}
	if edge == nil {
		return "", storage.ErrInvalidData
	}
	if edge.ID == "" {
		id, err := db.edgeIDs.Allocate(db.edgeExists)
		if err != nil {
			return "", fmt.Errorf("allocate edge id: %w", err)
		}
		edge.ID = EdgeID(id)
	}

	if err := db.engine.CreateEdge(edge); err != nil {
		return "", err
	}
	db.edgeIDs.Observe(string(edge.ID))

	db.logger.Debug("edge inserted", "id", edge.ID, "source", edge.SourceID, "target", edge.TargetID, "relation", edge.Relation)
	return edge.ID, nil
}

// BulkInsertEdges stores a batch of edges atomically, with the same
// validate-then-commit contract as BulkInsertNodes. Every endpoint must
// exist before the batch commits.
func (db *DB) BulkInsertEdges(ctx context.Context, edges []*Edge) ([]EdgeID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ErrClosed
	}

	for i, edge := range edges {
		if edge == nil {
			return nil, fmt.Errorf("edge %d: %w", i, storage.ErrInvalidData)
		}
	}
	for _, edge := range edges {
		if edge.ID != "" {
			continue
		}
		id, err := db.edgeIDs.Allocate(db.edgeExists)
		if err != nil {
			return nil, fmt.Errorf("allocate edge id: %w", err)
		}
		edge.ID = EdgeID(id)
	}

	if err := db.engine.BulkCreateEdges(edges); err != nil {
		return nil, err
	}

	ids := make([]EdgeID, len(edges))
	for i, edge := range edges {
		db.edgeIDs.Observe(string(edge.ID))
		ids[i] = edge.ID
	}

	db.logger.Debug("edges bulk inserted", "count", len(edges))
	return ids, nil
}

// DeleteEdge removes one edge from source to target. When parallel edges
// share the pair, the one with the lowest edge id is removed; the rule is
// deterministic so repeated calls peel parallel edges in a stable order.
// ErrNotFound when no edge matches.
func (db *DB) DeleteEdge(ctx context.Context, source, target NodeID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	removed, err := db.engine.DeleteEdgeBetween(source, target)
	if err != nil {
		return err
	}

	db.logger.Debug("edge deleted", "id", removed, "source", source, "target", target)
	return nil
}

// ConnectedNodes returns the other endpoint of every edge touching the
// node, in either direction, deduplicated and sorted by node id.
// ErrNotFound when the node itself does not exist.
func (db *DB) ConnectedNodes(ctx context.Context, id NodeID) ([]*Node, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}
	return db.engine.Neighbors(id)
}

// ============================================================================
// Similarity Search
// ============================================================================

// NearestNodes returns up to limit nodes ordered by ascending distance
// from the query vector, ties broken by node id.
//
// The index snapshot is built automatically on first use. Afterwards the
// search answers from the last built snapshot even when node mutations
// have made it stale; use IndexStatus to detect the lag, RebuildIndex to
// catch up, or NearestNodesWithOptions with RequireFresh to fail instead.
// Nodes deleted since the snapshot was built are dropped from the results.
func (db *DB) NearestNodes(ctx context.Context, vec []float32, limit int) ([]SearchResult, error) {
	return db.NearestNodesWithOptions(ctx, vec, limit, SearchOptions{})
}

// NearestNodesWithOptions is NearestNodes with explicit search options.
func (db *DB) NearestNodesWithOptions(ctx context.Context, vec []float32, limit int, opts SearchOptions) ([]SearchResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}
	if len(vec) != db.config.VectorLength {
		return nil, fmt.Errorf("query vector has %d dimensions, store is configured for %d: %w",
			len(vec), db.config.VectorLength, ErrDimensionMismatch)
	}

	// Writers are excluded while the read lock is held, so a snapshot
	// built here is fresh by construction.
	if !db.index.Built() {
		if err := db.rebuildLocked(ctx); err != nil {
			return nil, err
		}
	} else if opts.RequireFresh && db.index.Generation() != db.generation.Load() {
		return nil, ErrIndexStale
	}

	hits, err := db.index.Query(ctx, vec, limit)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		node, err := db.engine.GetNode(NodeID(hit.ID))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Deleted after the snapshot was built.
				continue
			}
			return nil, err
		}
		results = append(results, SearchResult{Node: node, Distance: hit.Distance})
	}
	return results, nil
}

// RebuildIndex scans the node set and replaces the similarity index
// snapshot. The scan runs under a read lock: searches proceed against the
// previous snapshot, writers wait.
func (db *DB) RebuildIndex(ctx context.Context) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return ErrClosed
	}
	return db.rebuildLocked(ctx)
}

// rebuildLocked scans nodes and builds the index. Callers hold db.mu in
// at least read mode, which excludes writers, so the generation recorded
// here matches the scanned data.
func (db *DB) rebuildLocked(ctx context.Context) error {
	entries := pool.GetEntrySlice()
	defer func() { pool.PutEntrySlice(entries) }()

	err := storage.StreamNodesWithFallback(ctx, db.engine, func(n *storage.Node) error {
		if len(n.Embedding) == 0 {
			return nil
		}
		entries = append(entries, index.Entry{ID: string(n.ID), Vector: n.Embedding})
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan nodes for index: %w", err)
	}

	if err := db.index.Build(entries, db.generation.Load()); err != nil {
		return err
	}
	db.logger.Debug("similarity index built", "entries", len(entries), "generation", db.index.Generation())
	return nil
}

// IndexStatus reports whether a similarity index snapshot exists and
// whether node mutations have outrun it.
func (db *DB) IndexStatus() IndexStatus {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.indexStatusLocked()
}

func (db *DB) indexStatusLocked() IndexStatus {
	current := db.generation.Load()
	st := IndexStatus{
		Built:             db.index.Built(),
		IndexedGeneration: db.index.Generation(),
		CurrentGeneration: current,
		Metric:            db.index.Metric().String(),
		Size:              db.index.Len(),
	}
	st.Stale = st.Built && st.IndexedGeneration != current
	return st
}

// ============================================================================
// Declarative Queries
// ============================================================================

// Query forwards a declarative graph query to the storage engine.
//
// The query is translated to SQL and executed by engines that support it
// (SQLite); the result set is returned raw, without interpretation.
// Engines with no query capability fail with ErrQueryNotSupported.
//
// Example:
//
//	res, err := db.Query(ctx, `MATCH (n:Person {name: "George Washington"}) RETURN n`)
func (db *DB) Query(ctx context.Context, q string) (*query.Result, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}
	ex, ok := db.engine.(query.Executor)
	if !ok {
		return nil, fmt.Errorf("%s engine: %w", engineName(db.engine), ErrQueryNotSupported)
	}
	return db.translator.Execute(ctx, ex, q)
}

// ============================================================================
// Introspection
// ============================================================================

// Stats returns a point-in-time summary of the store.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return Stats{}, ErrClosed
	}

	nodes, err := db.engine.NodeCount()
	if err != nil {
		return Stats{}, err
	}
	edges, err := db.engine.EdgeCount()
	if err != nil {
		return Stats{}, err
	}
	types, err := storage.CollectTypes(ctx, db.engine)
	if err != nil {
		return Stats{}, err
	}
	relations, err := storage.CollectRelations(ctx, db.engine)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Engine:       engineName(db.engine),
		VectorLength: db.config.VectorLength,
		Nodes:        nodes,
		Edges:        edges,
		Types:        types,
		Relations:    relations,
		Index:        db.indexStatusLocked(),
		QueryCache:   db.translator.CacheStats(),
	}, nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

// normalizeEmbedding fills an absent (nil or empty) embedding with the
// zero vector and rejects any other length mismatch. Runs before any write.
func (db *DB) normalizeEmbedding(node *Node) error {
	if len(node.Embedding) == 0 {
		node.Embedding = make([]float32, db.config.VectorLength)
		return nil
	}
	if len(node.Embedding) != db.config.VectorLength {
		return fmt.Errorf("node embedding has %d dimensions, store is configured for %d: %w",
			len(node.Embedding), db.config.VectorLength, ErrDimensionMismatch)
	}
	return nil
}

func (db *DB) nodeExists(id string) bool {
	_, err := db.engine.GetNode(NodeID(id))
	return err == nil
}

func (db *DB) edgeExists(id string) bool {
	_, err := db.engine.GetEdge(EdgeID(id))
	return err == nil
}

func engineName(e storage.Engine) string {
	switch e.(type) {
	case *storage.MemoryEngine:
		return "memory"
	case *storage.BadgerEngine:
		return "badger"
	case *storage.SQLiteEngine:
		return "sqlite"
	default:
		return "unknown"
	}
}
