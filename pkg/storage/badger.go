package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/munindb/pkg/pool"
)

// Key prefixes for BadgerDB storage organization.
// Single-byte prefixes keep keys compact and scans cheap.
const (
	prefixNode          = byte(0x01) // node:nodeID -> Node
	prefixEdge          = byte(0x02) // edge:edgeID -> Edge
	prefixTypeIndex     = byte(0x03) // type:typeName:nodeID -> []byte{}
	prefixOutgoingIndex = byte(0x04) // outgoing:nodeID:edgeID -> []byte{}
	prefixIncomingIndex = byte(0x05) // incoming:nodeID:edgeID -> []byte{}
)

// BadgerEngine provides persistent storage using BadgerDB.
//
// Features:
//   - ACID transactions for all operations, including cascading deletes
//   - Persistent storage to disk with automatic crash recovery
//   - Secondary indexes for type lookups and adjacency scans
//   - Thread-safe concurrent access
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> JSON(Node)
//   - Edges: 0x02 + edgeID -> JSON(Edge)
//   - Type Index: 0x03 + type + 0x00 + nodeID -> empty
//   - Outgoing Index: 0x04 + nodeID + 0x00 + edgeID -> empty
//   - Incoming Index: 0x05 + nodeID + 0x00 + edgeID -> empty
//
// Type labels are indexed exactly as stored; lookups are case-sensitive.
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	node := &storage.Node{
//		ID:         "user-123",
//		Type:       "User",
//		Properties: map[string]any{"name": "Alice"},
//	}
//	engine.CreateNode(node)
type BadgerEngine struct {
	db     *badger.DB
	closed bool
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	// Slower but more durable.
	SyncWrites bool

	// Logger for BadgerDB internal logging.
	// If nil, BadgerDB's internal chatter is silenced.
	Logger badger.Logger
}

// NewBadgerEngine creates a persistent storage engine with default settings.
//
// All data is stored in the given directory and survives restarts. The
// directory is created if it does not exist.
//
// Parameters:
//   - dataDir: Directory path for storing data files.
//
// Returns:
//   - *BadgerEngine on success
//   - error if the database cannot be opened (permissions, disk space, lock held)
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("./data/munindb")
//	if err != nil {
//		return fmt.Errorf("failed to open database: %w", err)
//	}
//	defer engine.Close()
//
// ELI12:
//
// Think of NewBadgerEngine like setting up a filing cabinet in your room.
// You tell it "put the cabinet here" (the dataDir), and it creates folders
// and organizes everything. Even if you turn off your computer, the cabinet
// stays there with all your files inside. Next time you start up, all your
// data is still there!
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		DataDir: dataDir,
	})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom configuration.
//
// Use this when you need in-memory mode for testing, synchronous writes for
// maximum durability, or a custom logger wired into the application's
// logging stack.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
		badgerOpts.Dir = ""
		badgerOpts.ValueDir = ""
	}

	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	// Badger's default logger writes to stderr; stay quiet unless the
	// caller wires one in.
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	// Tuned below Badger's defaults. Graph records are small; the default
	// buffers are sized for much larger values.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &BadgerEngine{db: db}, nil
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
//
// Data is not persisted and is lost when the engine is closed. Useful for
// unit tests that need persistent-storage semantics without disk I/O.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		InMemory: true,
	})
}

// ============================================================================
// Key encoding helpers
// ============================================================================

// nodeKey creates a key for storing a node.
func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

// edgeKey creates a key for storing an edge.
func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

// typeIndexKey creates a key for the type index.
// Format: prefix + type + 0x00 + nodeID
func typeIndexKey(nodeType string, nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(nodeType)+1+len(nodeID))
	key = append(key, prefixTypeIndex)
	key = append(key, []byte(nodeType)...)
	key = append(key, 0x00) // Separator
	key = append(key, []byte(nodeID)...)
	return key
}

// typeIndexPrefix returns the prefix for scanning all nodes with a type.
func typeIndexPrefix(nodeType string) []byte {
	key := make([]byte, 0, 1+len(nodeType)+1)
	key = append(key, prefixTypeIndex)
	key = append(key, []byte(nodeType)...)
	key = append(key, 0x00)
	return key
}

// outgoingIndexKey creates a key for the outgoing edge index.
func outgoingIndexKey(nodeID NodeID, edgeID EdgeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1+len(edgeID))
	key = append(key, prefixOutgoingIndex)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	key = append(key, []byte(edgeID)...)
	return key
}

// outgoingIndexPrefix returns the prefix for scanning outgoing edges.
func outgoingIndexPrefix(nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1)
	key = append(key, prefixOutgoingIndex)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	return key
}

// incomingIndexKey creates a key for the incoming edge index.
func incomingIndexKey(nodeID NodeID, edgeID EdgeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1+len(edgeID))
	key = append(key, prefixIncomingIndex)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	key = append(key, []byte(edgeID)...)
	return key
}

// incomingIndexPrefix returns the prefix for scanning incoming edges.
func incomingIndexPrefix(nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1)
	key = append(key, prefixIncomingIndex)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	return key
}

// extractEdgeIDFromIndexKey extracts the edgeID from an adjacency index key.
// Format: prefix + nodeID + 0x00 + edgeID
func extractEdgeIDFromIndexKey(key []byte) EdgeID {
	for i := 1; i < len(key); i++ {
		if key[i] == 0x00 {
			return EdgeID(key[i+1:])
		}
	}
	return ""
}

// extractNodeIDFromTypeIndex extracts the nodeID from a type index key.
// Format: prefix + type + 0x00 + nodeID
func extractNodeIDFromTypeIndex(key []byte, typeLen int) NodeID {
	offset := 1 + typeLen + 1
	if offset >= len(key) {
		return ""
	}
	return NodeID(key[offset:])
}

// ============================================================================
// Serialization helpers
// ============================================================================

// serializableNode is the JSON-serializable form of a Node.
type serializableNode struct {
	ID         string         `json:"id"`
	Type       string         `json:"type,omitempty"`
	Properties map[string]any `json:"properties"`
	Embedding  []float32      `json:"embedding,omitempty"`
}

// serializableEdge is the JSON-serializable form of an Edge.
type serializableEdge struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// encodeNode serializes a Node to JSON.
func encodeNode(n *Node) ([]byte, error) {
	sn := serializableNode{
		ID:         string(n.ID),
		Type:       n.Type,
		Properties: n.Properties,
		Embedding:  n.Embedding,
	}
	return json.Marshal(sn)
}

// decodeNode deserializes a Node from JSON.
func decodeNode(data []byte) (*Node, error) {
	var sn serializableNode
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, err
	}

	return &Node{
		ID:         NodeID(sn.ID),
		Type:       sn.Type,
		Properties: sn.Properties,
		Embedding:  sn.Embedding,
	}, nil
}

// encodeEdge serializes an Edge to JSON.
func encodeEdge(e *Edge) ([]byte, error) {
	se := serializableEdge{
		ID:       string(e.ID),
		SourceID: string(e.SourceID),
		TargetID: string(e.TargetID),
		Relation: e.Relation,
		Weight:   e.Weight,
	}
	return json.Marshal(se)
}

// decodeEdge deserializes an Edge from JSON.
func decodeEdge(data []byte) (*Edge, error) {
	var se serializableEdge
	if err := json.Unmarshal(data, &se); err != nil {
		return nil, err
	}

	return &Edge{
		ID:       EdgeID(se.ID),
		SourceID: NodeID(se.SourceID),
		TargetID: NodeID(se.TargetID),
		Relation: se.Relation,
		Weight:   se.Weight,
	}, nil
}

// ============================================================================
// Node Operations
// ============================================================================

// CreateNode creates a new node in persistent storage.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if b.closed {
		return ErrClosed
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		_, err := txn.Get(key)
		if err == nil {
			return ErrDuplicateID
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		if node.Type != "" {
			if err := txn.Set(typeIndexKey(node.Type, node.ID), []byte{}); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if b.closed {
		return nil, ErrClosed
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var decodeErr error
			node, decodeErr = decodeNode(val)
			return decodeErr
		})
	})

	return node, err
}

// DeleteNode removes a node and every edge touching it, in one transaction.
// A crash mid-delete rolls the whole cascade back; no state with the node
// gone but an incident edge still present is ever persisted.
func (b *BadgerEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}
	if b.closed {
		return ErrClosed
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(id)

		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var node *Node
		if err := item.Value(func(val []byte) error {
			var decodeErr error
			node, decodeErr = decodeNode(val)
			return decodeErr
		}); err != nil {
			return err
		}

		if node.Type != "" {
			if err := txn.Delete(typeIndexKey(node.Type, id)); err != nil {
				return err
			}
		}

		// Cascade both directions.
		if err := b.deleteEdgesWithPrefix(txn, outgoingIndexPrefix(id)); err != nil {
			return err
		}
		if err := b.deleteEdgesWithPrefix(txn, incomingIndexPrefix(id)); err != nil {
			return err
		}

		return txn.Delete(key)
	})
}

// deleteEdgesWithPrefix deletes all edges named by an adjacency index prefix
// (helper for DeleteNode).
func (b *BadgerEngine) deleteEdgesWithPrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	edgeIDs := pool.GetStringSlice()
	defer func() { pool.PutStringSlice(edgeIDs) }()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if edgeID := extractEdgeIDFromIndexKey(it.Item().Key()); edgeID != "" {
			edgeIDs = append(edgeIDs, string(edgeID))
		}
	}
	it.Close()

	for _, edgeID := range edgeIDs {
		if err := b.deleteEdgeInTxn(txn, EdgeID(edgeID)); err != nil && err != ErrNotFound {
			return err
		}
	}

	return nil
}

// BulkCreateNodes creates multiple nodes in a single transaction.
//
// All nodes are validated before any write: nil records, empty ids, ids
// already in the store, and ids repeated inside the batch all abort the
// whole transaction.
func (b *BadgerEngine) BulkCreateNodes(nodes []*Node) error {
	if b.closed {
		return ErrClosed
	}

	for _, node := range nodes {
		if node == nil {
			return ErrInvalidData
		}
		if node.ID == "" {
			return ErrInvalidID
		}
	}

	return b.db.Update(func(txn *badger.Txn) error {
		seen := make(map[NodeID]struct{}, len(nodes))
		for _, node := range nodes {
			_, err := txn.Get(nodeKey(node.ID))
			if err == nil {
				return ErrDuplicateID
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
			if _, dup := seen[node.ID]; dup {
				return ErrDuplicateID
			}
			seen[node.ID] = struct{}{}
		}

		for _, node := range nodes {
			data, err := encodeNode(node)
			if err != nil {
				return fmt.Errorf("failed to encode node: %w", err)
			}

			if err := txn.Set(nodeKey(node.ID), data); err != nil {
				return err
			}

			if node.Type != "" {
				if err := txn.Set(typeIndexKey(node.Type, node.ID), []byte{}); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// AllNodes returns all nodes, sorted by id.
func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	if b.closed {
		return nil, ErrClosed
	}

	nodes := make([]*Node, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixNode}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var node *Node
			if err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				node, decodeErr = decodeNode(val)
				return decodeErr
			}); err != nil {
				continue
			}
			nodes = append(nodes, node)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	SortNodesByID(nodes)
	return nodes, nil
}

// NodesByType returns all nodes with the exact type label, sorted by id.
// Type labels are case-sensitive; the empty label selects untyped nodes.
func (b *BadgerEngine) NodesByType(nodeType string) ([]*Node, error) {
	if b.closed {
		return nil, ErrClosed
	}

	// The untyped category is not indexed; fall back to a full scan.
	if nodeType == "" {
		all, err := b.AllNodes()
		if err != nil {
			return nil, err
		}
		nodes := make([]*Node, 0)
		for _, node := range all {
			if node.Type == "" {
				nodes = append(nodes, node)
			}
		}
		return nodes, nil
	}

	nodes := make([]*Node, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := typeIndexPrefix(nodeType)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			nodeID := extractNodeIDFromTypeIndex(it.Item().Key(), len(nodeType))
			if nodeID == "" {
				continue
			}

			item, err := txn.Get(nodeKey(nodeID))
			if err != nil {
				continue // Skip if node was deleted
			}

			var node *Node
			if err := item.Value(func(val []byte) error {
				var decodeErr error
				node, decodeErr = decodeNode(val)
				return decodeErr
			}); err != nil {
				continue
			}

			nodes = append(nodes, node)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	SortNodesByID(nodes)
	return nodes, nil
}

// FindNodesByProperty returns all nodes whose properties[key] equals value,
// sorted by id. Properties are not indexed; this is a full scan.
func (b *BadgerEngine) FindNodesByProperty(key string, value any) ([]*Node, error) {
	if b.closed {
		return nil, ErrClosed
	}

	nodes := make([]*Node, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixNode}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var node *Node
			if err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				node, decodeErr = decodeNode(val)
				return decodeErr
			}); err != nil {
				continue
			}

			stored, ok := node.Properties[key]
			if !ok {
				continue
			}
			if PropertyValueEquals(stored, value) {
				nodes = append(nodes, node)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	SortNodesByID(nodes)
	return nodes, nil
}

// ============================================================================
// Edge Operations
// ============================================================================

// CreateEdge creates a new edge between two existing nodes.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}
	if b.closed {
		return ErrClosed
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := edgeKey(edge.ID)
		_, err := txn.Get(key)
		if err == nil {
			return ErrDuplicateID
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		// Both endpoints must exist before the edge does.
		_, err = txn.Get(nodeKey(edge.SourceID))
		if err == badger.ErrKeyNotFound {
			return ErrUnknownNode
		}
		if err != nil {
			return err
		}

		_, err = txn.Get(nodeKey(edge.TargetID))
		if err == badger.ErrKeyNotFound {
			return ErrUnknownNode
		}
		if err != nil {
			return err
		}

		data, err := encodeEdge(edge)
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		if err := txn.Set(outgoingIndexKey(edge.SourceID, edge.ID), []byte{}); err != nil {
			return err
		}
		if err := txn.Set(incomingIndexKey(edge.TargetID, edge.ID), []byte{}); err != nil {
			return err
		}

		return nil
	})
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if b.closed {
		return nil, ErrClosed
	}

	var edge *Edge
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var decodeErr error
			edge, decodeErr = decodeEdge(val)
			return decodeErr
		})
	})

	return edge, err
}

// DeleteEdge removes an edge by id.
func (b *BadgerEngine) DeleteEdge(id EdgeID) error {
	if id == "" {
		return ErrInvalidID
	}
	if b.closed {
		return ErrClosed
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return b.deleteEdgeInTxn(txn, id)
	})
}

// deleteEdgeInTxn deletes an edge and its index entries within a transaction.
func (b *BadgerEngine) deleteEdgeInTxn(txn *badger.Txn, id EdgeID) error {
	key := edgeKey(id)

	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var edge *Edge
	if err := item.Value(func(val []byte) error {
		var decodeErr error
		edge, decodeErr = decodeEdge(val)
		return decodeErr
	}); err != nil {
		return err
	}

	if err := txn.Delete(outgoingIndexKey(edge.SourceID, id)); err != nil {
		return err
	}
	if err := txn.Delete(incomingIndexKey(edge.TargetID, id)); err != nil {
		return err
	}

	return txn.Delete(key)
}

// DeleteEdgeBetween removes exactly one edge from source to target and
// returns its id. Among parallel edges the one with the lowest id in IDLess
// order goes first, so repeated calls peel them off deterministically.
func (b *BadgerEngine) DeleteEdgeBetween(source, target NodeID) (EdgeID, error) {
	if source == "" || target == "" {
		return "", ErrInvalidID
	}
	if b.closed {
		return "", ErrClosed
	}

	var deleted EdgeID
	err := b.db.Update(func(txn *badger.Txn) error {
		prefix := outgoingIndexPrefix(source)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		candidates := pool.GetStringSlice()
		defer func() { pool.PutStringSlice(candidates) }()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if edgeID := extractEdgeIDFromIndexKey(it.Item().Key()); edgeID != "" {
				candidates = append(candidates, string(edgeID))
			}
		}
		it.Close()

		var match *Edge
		for _, edgeID := range candidates {
			item, err := txn.Get(edgeKey(EdgeID(edgeID)))
			if err != nil {
				continue
			}

			var edge *Edge
			if err := item.Value(func(val []byte) error {
				var decodeErr error
				edge, decodeErr = decodeEdge(val)
				return decodeErr
			}); err != nil {
				continue
			}

			if edge.TargetID != target {
				continue
			}
			if match == nil || IDLess(string(edge.ID), string(match.ID)) {
				match = edge
			}
		}
		if match == nil {
			return ErrNotFound
		}

		deleted = match.ID
		return b.deleteEdgeInTxn(txn, match.ID)
	})
	if err != nil {
		return "", err
	}

	return deleted, nil
}

// BulkCreateEdges creates multiple edges in a single transaction, with all
// validation (duplicate ids, batch-internal repeats, endpoint existence)
// done before the first write.
func (b *BadgerEngine) BulkCreateEdges(edges []*Edge) error {
	if b.closed {
		return ErrClosed
	}

	for _, edge := range edges {
		if edge == nil {
			return ErrInvalidData
		}
		if edge.ID == "" {
			return ErrInvalidID
		}
	}

	return b.db.Update(func(txn *badger.Txn) error {
		seen := make(map[EdgeID]struct{}, len(edges))
		for _, edge := range edges {
			_, err := txn.Get(edgeKey(edge.ID))
			if err == nil {
				return ErrDuplicateID
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
			if _, dup := seen[edge.ID]; dup {
				return ErrDuplicateID
			}
			seen[edge.ID] = struct{}{}

			if _, err := txn.Get(nodeKey(edge.SourceID)); err == badger.ErrKeyNotFound {
				return ErrUnknownNode
			} else if err != nil {
				return err
			}
			if _, err := txn.Get(nodeKey(edge.TargetID)); err == badger.ErrKeyNotFound {
				return ErrUnknownNode
			} else if err != nil {
				return err
			}
		}

		for _, edge := range edges {
			data, err := encodeEdge(edge)
			if err != nil {
				return fmt.Errorf("failed to encode edge: %w", err)
			}

			if err := txn.Set(edgeKey(edge.ID), data); err != nil {
				return err
			}
			if err := txn.Set(outgoingIndexKey(edge.SourceID, edge.ID), []byte{}); err != nil {
				return err
			}
			if err := txn.Set(incomingIndexKey(edge.TargetID, edge.ID), []byte{}); err != nil {
				return err
			}
		}

		return nil
	})
}

// AllEdges returns all edges, sorted by id.
func (b *BadgerEngine) AllEdges() ([]*Edge, error) {
	if b.closed {
		return nil, ErrClosed
	}

	edges := make([]*Edge, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixEdge}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var edge *Edge
			if err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				edge, decodeErr = decodeEdge(val)
				return decodeErr
			}); err != nil {
				continue
			}
			edges = append(edges, edge)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	SortEdgesByID(edges)
	return edges, nil
}

// Neighbors returns the other endpoint of every edge touching the node, in
// either direction, deduplicated and sorted by id. Returns ErrNotFound when
// the anchor node does not exist.
func (b *BadgerEngine) Neighbors(id NodeID) ([]*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if b.closed {
		return nil, ErrClosed
	}

	nodes := make([]*Node, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(nodeKey(id)); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		others := make(map[NodeID]struct{})

		collect := func(prefix []byte, pickOther func(*Edge) NodeID) {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				edgeID := extractEdgeIDFromIndexKey(it.Item().Key())
				if edgeID == "" {
					continue
				}

				item, err := txn.Get(edgeKey(edgeID))
				if err != nil {
					continue
				}

				var edge *Edge
				if err := item.Value(func(val []byte) error {
					var decodeErr error
					edge, decodeErr = decodeEdge(val)
					return decodeErr
				}); err != nil {
					continue
				}

				others[pickOther(edge)] = struct{}{}
			}
		}

		collect(outgoingIndexPrefix(id), func(e *Edge) NodeID { return e.TargetID })
		collect(incomingIndexPrefix(id), func(e *Edge) NodeID { return e.SourceID })

		for otherID := range others {
			item, err := txn.Get(nodeKey(otherID))
			if err != nil {
				continue
			}

			var node *Node
			if err := item.Value(func(val []byte) error {
				var decodeErr error
				node, decodeErr = decodeNode(val)
				return decodeErr
			}); err != nil {
				continue
			}

			nodes = append(nodes, node)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	SortNodesByID(nodes)
	return nodes, nil
}

// ============================================================================
// Stats and Lifecycle
// ============================================================================

// NodeCount returns the total number of nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	if b.closed {
		return 0, ErrClosed
	}
	return b.countPrefix(prefixNode)
}

// EdgeCount returns the total number of edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	if b.closed {
		return 0, ErrClosed
	}
	return b.countPrefix(prefixEdge)
}

func (b *BadgerEngine) countPrefix(p byte) (int64, error) {
	var count int64
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{p}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close closes the BadgerDB database. Idempotent.
func (b *BadgerEngine) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// Sync forces a sync of all data to disk.
func (b *BadgerEngine) Sync() error {
	if b.closed {
		return ErrClosed
	}
	return b.db.Sync()
}

// RunGC runs garbage collection on the BadgerDB value log. Should be called
// periodically in long-running applications.
func (b *BadgerEngine) RunGC() error {
	if b.closed {
		return ErrClosed
	}
	return b.db.RunValueLogGC(0.5)
}

// Size returns the approximate on-disk size of the database in bytes.
func (b *BadgerEngine) Size() (lsm, vlog int64) {
	if b.closed {
		return 0, 0
	}
	return b.db.Size()
}

// ============================================================================
// Streaming
// ============================================================================

// StreamNodes implements StreamingEngine. Nodes are visited one at a time
// without loading the whole set into memory, in badger's key order rather
// than IDLess order; callers needing sorted output should collect and sort.
func (b *BadgerEngine) StreamNodes(ctx context.Context, fn func(node *Node) error) error {
	if b.closed {
		return ErrClosed
	}

	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixNode}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var node *Node
			err := it.Item().Value(func(val []byte) error {
				var decErr error
				node, decErr = decodeNode(val)
				return decErr
			})
			if err != nil {
				continue // Skip invalid records
			}
			if err := fn(node); err != nil {
				if err == ErrIterationStopped {
					return nil
				}
				return err
			}
		}
		return nil
	})
}

// StreamEdges implements StreamingEngine for edges.
func (b *BadgerEngine) StreamEdges(ctx context.Context, fn func(edge *Edge) error) error {
	if b.closed {
		return ErrClosed
	}

	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixEdge}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var edge *Edge
			err := it.Item().Value(func(val []byte) error {
				var decErr error
				edge, decErr = decodeEdge(val)
				return decErr
			})
			if err != nil {
				continue // Skip invalid records
			}
			if err := fn(edge); err != nil {
				if err == ErrIterationStopped {
					return nil
				}
				return err
			}
		}
		return nil
	})
}

// Verify interface conformance
var (
	_ Engine          = (*BadgerEngine)(nil)
	_ StreamingEngine = (*BadgerEngine)(nil)
)
