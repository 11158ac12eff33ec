// Package storage provides the storage engine interface and implementations
// for MuninDB.
//
// The storage layer owns node and edge records and enforces the graph's
// write-time consistency rules: unique identifiers, referential integrity
// for edge endpoints, and cascading delete (removing a node removes every
// edge touching it, atomically, so no reader ever observes a dangling edge).
//
// Design Principles:
//   - One Engine interface, three implementations (memory, badger, sqlite)
//   - Validate-then-commit: bulk operations reject the whole batch before
//     any record is written
//   - Deep copies across the call boundary: callers own the values they
//     pass in and get back
//   - Deterministic ordering: scans sort by id so repeated reads against
//     unchanged state return the same order
//
// Example Usage:
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	node := &storage.Node{
//		ID:   storage.NodeID("1"),
//		Type: "Person",
//		Properties: map[string]any{
//			"name": "George Washington",
//			"age":  57,
//		},
//		Embedding: []float32{0.1, 0.2, 0.3},
//	}
//	if err := engine.CreateNode(node); err != nil {
//		// handle err
//	}
//
//	edge := &storage.Edge{
//		ID:       storage.EdgeID("1"),
//		SourceID: storage.NodeID("1"),
//		TargetID: storage.NodeID("2"),
//		Relation: "served_under",
//		Weight:   1.0,
//	}
//	engine.CreateEdge(edge) // fails with ErrUnknownNode: node "2" absent
package storage

import (
	"context"
	"errors"
	"reflect"
	"sort"

	"github.com/orneryd/munindb/pkg/convert"
	"github.com/orneryd/munindb/pkg/ident"
)

// Common errors. Engines return these unwrapped or wrapped with context;
// callers match with errors.Is.
var (
	// ErrNotFound: the lookup or delete target does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID: a caller-supplied id collides with an existing record.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrUnknownNode: an edge references a node that does not exist.
	ErrUnknownNode = errors.New("unknown node")
	// ErrDimensionMismatch: an embedding or query vector's length differs
	// from the store's configured vector length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrClosed: the engine has been closed.
	ErrClosed = errors.New("storage closed")
	// ErrIterationStopped is a sentinel a streaming callback can return to
	// stop iteration early without reporting a failure.
	ErrIterationStopped = errors.New("iteration stopped")
	// ErrInvalidID: an empty identifier where one is required.
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidData: a nil record.
	ErrInvalidData = errors.New("invalid data")
)

// NodeID is a strongly-typed unique identifier for graph nodes.
//
// Identifiers are strings regardless of the allocator strategy: a
// sequential store issues decimal strings ("1", "2", ...), a random store
// issues UUID strings. The string form is what appears in JSON exports.
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph edges.
type EdgeID string

// Node is a graph vertex: arbitrary JSON-compatible properties, an
// optional type label, and a fixed-length embedding.
//
// Fields:
//   - ID: unique across all nodes; assigned by the store's allocator when
//     empty at insert time, immutable afterwards.
//   - Type: optional category label ("Person"). The empty string is a
//     valid, distinct category, not an error.
//   - Properties: unordered string-keyed map of JSON-compatible values
//     (string, number, bool, nil, []any, map[string]any). No fixed schema.
//   - Embedding: the node's vector, exactly vector_length floats. Supplied
//     by the caller; the store never computes embeddings.
//
// Node structs are plain values: not thread-safe, owned by whoever holds
// them. Engines deep-copy on the way in and out.
type Node struct {
	ID         NodeID         `json:"id"`
	Type       string         `json:"type,omitempty"`
	Properties map[string]any `json:"properties"`
	Embedding  []float32      `json:"embedding"`
}

// Clone returns a deep copy of the node. Nested property maps and slices
// are copied, not shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		ID:   n.ID,
		Type: n.Type,
	}
	if n.Properties != nil {
		c.Properties = deepCopyMap(n.Properties)
	}
	if n.Embedding != nil {
		c.Embedding = make([]float32, len(n.Embedding))
		copy(c.Embedding, n.Embedding)
	}
	return c
}

// Edge is a directed, typed, weighted connection between two nodes.
//
// Fields:
//   - ID: unique across all edges; allocator-assigned when empty.
//   - SourceID, TargetID: endpoints; both must exist at insert time.
//   - Relation: relationship label ("served_under"); unconstrained.
//   - Weight: caller-defined float (confidence, distance, strength, ...).
type Edge struct {
	ID       EdgeID  `json:"id"`
	SourceID NodeID  `json:"source_id"`
	TargetID NodeID  `json:"target_id"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// Clone returns a copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// deepCopyMap copies a property map including nested maps and slices.
// Scalars (strings, numbers, bools, nil) are immutable and copied by value.
func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// IDLess reports whether id a sorts before id b, in ident.Less order
// (numeric-aware, total). Engines use it for every deterministic ordering
// contract: scan output, and the lowest-edge-id rule for deleting one of
// several parallel edges.
func IDLess(a, b string) bool {
	return ident.Less(a, b)
}

// SortNodesByID orders nodes in place by id (IDLess order). Engines sort
// every multi-node result so repeated reads against unchanged state return
// the same order.
func SortNodesByID(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return IDLess(string(nodes[i].ID), string(nodes[j].ID))
	})
}

// SortEdgesByID orders edges in place by id (IDLess order).
func SortEdgesByID(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool {
		return IDLess(string(edges[i].ID), string(edges[j].ID))
	})
}

// PropertyValueEquals reports whether a stored property value matches a
// query value under attribute-search semantics: numbers compare across
// int/float encodings (a stored 57 matches a query 57.0), strings and
// bools compare directly and never coerce, nil matches nil, and composite
// values (maps, slices) must be structurally identical.
func PropertyValueEquals(stored, query any) bool {
	if stored == nil || query == nil {
		return stored == nil && query == nil
	}

	if sf, ok := convert.ToFloat64(stored); ok {
		qf, ok := convert.ToFloat64(query)
		return ok && sf == qf
	}

	switch sv := stored.(type) {
	case string:
		qv, ok := query.(string)
		return ok && sv == qv
	case bool:
		qv, ok := query.(bool)
		return ok && sv == qv
	}

	return reflect.DeepEqual(stored, query)
}

// Engine is the storage contract shared by all MuninDB backends.
//
// All implementations MUST be:
//   - Thread-safe: callable from multiple goroutines
//   - Atomic within an operation: cascades and bulk writes either fully
//     apply or leave state untouched
//   - Fail-fast: validation happens before any mutation
//
// Engines do not know the store's vector length; dimension checks belong
// to the layer that owns that configuration (pkg/munindb). Everything
// else (id uniqueness, endpoint existence, cascade) is enforced here.
//
// Implementations:
//   - MemoryEngine: in-memory maps, for tests and ephemeral stores
//   - BadgerEngine: persistent key-value storage on BadgerDB
//   - SQLiteEngine: persistent SQL storage, also serves query passthrough
type Engine interface {
	// Node operations
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	DeleteNode(id NodeID) error
	BulkCreateNodes(nodes []*Node) error

	// Node queries
	AllNodes() ([]*Node, error)
	NodesByType(nodeType string) ([]*Node, error)
	FindNodesByProperty(key string, value any) ([]*Node, error)

	// Edge operations
	CreateEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)
	DeleteEdge(id EdgeID) error
	// DeleteEdgeBetween removes exactly one edge from source to target and
	// returns its id. When parallel edges share the pair, the one with the
	// lowest id (IDLess order) is removed. ErrNotFound when nothing matches.
	DeleteEdgeBetween(source, target NodeID) (EdgeID, error)
	BulkCreateEdges(edges []*Edge) error

	// Edge queries
	AllEdges() ([]*Edge, error)
	// Neighbors returns the other endpoint of every edge touching the node,
	// in either direction, deduplicated and sorted by node id.
	// ErrNotFound when the node itself does not exist.
	Neighbors(id NodeID) ([]*Node, error)

	// Stats
	NodeCount() (int64, error)
	EdgeCount() (int64, error)

	// Lifecycle
	Close() error
}

// =============================================================================
// STREAMING INTERFACE
// =============================================================================

// StreamingEngine extends Engine with streaming iteration support.
// Optional: engines that don't implement it are served by the fallback
// helpers below, which load everything and iterate.
type StreamingEngine interface {
	Engine

	// StreamNodes iterates over all nodes without loading the full set.
	// The callback may return ErrIterationStopped to end early without
	// error; any other error aborts and is returned.
	StreamNodes(ctx context.Context, fn func(node *Node) error) error

	// StreamEdges iterates over all edges without loading the full set.
	StreamEdges(ctx context.Context, fn func(edge *Edge) error) error
}

// NodeVisitor is called for each node during streaming.
type NodeVisitor func(node *Node) error

// EdgeVisitor is called for each edge during streaming.
type EdgeVisitor func(edge *Edge) error

// StreamNodesWithFallback iterates nodes via StreamingEngine when the
// engine supports it, otherwise loads all nodes and walks them. Honors
// ctx cancellation between records either way.
func StreamNodesWithFallback(ctx context.Context, engine Engine, fn NodeVisitor) error {
	if streamer, ok := engine.(StreamingEngine); ok {
		err := streamer.StreamNodes(ctx, fn)
		if errors.Is(err, ErrIterationStopped) {
			return nil
		}
		return err
	}

	nodes, err := engine.AllNodes()
	if err != nil {
		return err
	}
	for i, node := range nodes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(node); err != nil {
			if errors.Is(err, ErrIterationStopped) {
				return nil
			}
			return err
		}
		nodes[i] = nil // release for GC as we go
	}
	return nil
}

// StreamEdgesWithFallback iterates edges, streaming when available.
func StreamEdgesWithFallback(ctx context.Context, engine Engine, fn EdgeVisitor) error {
	if streamer, ok := engine.(StreamingEngine); ok {
		err := streamer.StreamEdges(ctx, fn)
		if errors.Is(err, ErrIterationStopped) {
			return nil
		}
		return err
	}

	edges, err := engine.AllEdges()
	if err != nil {
		return err
	}
	for i, edge := range edges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(edge); err != nil {
			if errors.Is(err, ErrIterationStopped) {
				return nil
			}
			return err
		}
		edges[i] = nil
	}
	return nil
}

// CollectTypes returns the distinct node type labels in the store, sorted.
// The empty type (untyped nodes) is not reported.
func CollectTypes(ctx context.Context, engine Engine) ([]string, error) {
	set := make(map[string]struct{})
	err := StreamNodesWithFallback(ctx, engine, func(node *Node) error {
		if node.Type != "" {
			set[node.Type] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	types := make([]string, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}

// CollectRelations returns the distinct edge relation labels in the store,
// sorted.
func CollectRelations(ctx context.Context, engine Engine) ([]string, error) {
	set := make(map[string]struct{})
	err := StreamEdgesWithFallback(ctx, engine, func(edge *Edge) error {
		set[edge.Relation] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	relations := make([]string, 0, len(set))
	for r := range set {
		relations = append(relations, r)
	}
	sort.Strings(relations)
	return relations, nil
}
