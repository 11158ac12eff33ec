package storage

import "sync"

// MemoryEngine is a thread-safe in-memory graph storage implementation.
//
// Use Cases:
//   - Unit testing (no disk I/O, fast cleanup)
//   - Ephemeral stores whose lifetime is one process
//   - Small graphs that fit entirely in RAM
//
// Features:
//   - Thread-safe: all operations use an RWMutex
//   - Indexed: type label and per-node edge indexes for fast lookups
//   - Deep copies: values are copied in and out, so callers can mutate
//     what they hold without corrupting the store
//   - Atomic cascades and bulk writes under one lock acquisition
//
// Performance Characteristics:
//   - Node/edge lookup by id: O(1)
//   - Nodes by type: O(k) where k = nodes with that type
//   - Neighbors: O(degree log degree)
//   - Attribute search: O(n) scan, by contract
//
// ELI12:
//
// Think of MemoryEngine like building the graph out of sticky notes on
// your desk: super fast to add, read, and tear up. But when you leave
// (the process exits), the notes are gone. Use BadgerEngine or
// SQLiteEngine when the graph has to survive a restart.
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	// Indexes for efficient lookups
	nodesByType   map[string]map[NodeID]struct{}
	outgoingEdges map[NodeID]map[EdgeID]struct{}
	incomingEdges map[NodeID]map[EdgeID]struct{}

	closed bool
}

// NewMemoryEngine creates an empty in-memory storage engine, ready for
// concurrent use.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes:         make(map[NodeID]*Node),
		edges:         make(map[EdgeID]*Edge),
		nodesByType:   make(map[string]map[NodeID]struct{}),
		outgoingEdges: make(map[NodeID]map[EdgeID]struct{}),
		incomingEdges: make(map[NodeID]map[EdgeID]struct{}),
	}
}

// CreateNode stores a new node.
//
// The node is deep-copied so later caller mutations don't reach the store.
//
// Returns:
//   - ErrInvalidData if node is nil
//   - ErrInvalidID if the id is empty
//   - ErrDuplicateID if a node with this id exists
//   - ErrClosed if the engine is closed
func (m *MemoryEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.nodes[node.ID]; exists {
		return ErrDuplicateID
	}

	m.storeNodeLocked(node)
	return nil
}

// GetNode returns a copy of the node with the given id, or ErrNotFound.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return nil, ErrNotFound
	}
	return node.Clone(), nil
}

// DeleteNode removes a node and cascades: every edge whose source or
// target is the node goes with it, under the same lock, so no reader can
// observe the node gone but an incident edge still present.
//
// Returns ErrNotFound if the node does not exist.
func (m *MemoryEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return ErrNotFound
	}

	if node.Type != "" {
		if byType := m.nodesByType[node.Type]; byType != nil {
			delete(byType, id)
		}
	}

	// Cascade: outgoing edges, fixing up the target side of the index.
	if outgoing := m.outgoingEdges[id]; outgoing != nil {
		for edgeID := range outgoing {
			if edge := m.edges[edgeID]; edge != nil {
				if incoming := m.incomingEdges[edge.TargetID]; incoming != nil {
					delete(incoming, edgeID)
				}
			}
			delete(m.edges, edgeID)
		}
		delete(m.outgoingEdges, id)
	}

	// Cascade: incoming edges, fixing up the source side.
	if incoming := m.incomingEdges[id]; incoming != nil {
		for edgeID := range incoming {
			if edge := m.edges[edgeID]; edge != nil {
				if outgoing := m.outgoingEdges[edge.SourceID]; outgoing != nil {
					delete(outgoing, edgeID)
				}
			}
			delete(m.edges, edgeID)
		}
		delete(m.incomingEdges, id)
	}

	delete(m.nodes, id)
	return nil
}

// BulkCreateNodes stores several nodes atomically.
//
// Every node is validated (nil checks, empty ids, collisions with
// existing nodes AND collisions inside the batch itself) before anything
// is written. A batch with one bad record changes nothing.
func (m *MemoryEngine) BulkCreateNodes(nodes []*Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	seen := make(map[NodeID]struct{}, len(nodes))
	for _, node := range nodes {
		if node == nil {
			return ErrInvalidData
		}
		if node.ID == "" {
			return ErrInvalidID
		}
		if _, exists := m.nodes[node.ID]; exists {
			return ErrDuplicateID
		}
		if _, dup := seen[node.ID]; dup {
			return ErrDuplicateID
		}
		seen[node.ID] = struct{}{}
	}

	for _, node := range nodes {
		m.storeNodeLocked(node)
	}
	return nil
}

// AllNodes returns copies of every node, sorted by id.
func (m *MemoryEngine) AllNodes() ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	nodes := make([]*Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		nodes = append(nodes, node.Clone())
	}
	SortNodesByID(nodes)
	return nodes, nil
}

// NodesByType returns every node carrying the exact type label, sorted by
// id. Type labels are case-sensitive; the empty label is a valid category
// and returns the untyped nodes.
func (m *MemoryEngine) NodesByType(nodeType string) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	// The untyped category is not indexed; scan for it.
	if nodeType == "" {
		nodes := make([]*Node, 0)
		for _, node := range m.nodes {
			if node.Type == "" {
				nodes = append(nodes, node.Clone())
			}
		}
		SortNodesByID(nodes)
		return nodes, nil
	}

	ids := m.nodesByType[nodeType]
	nodes := make([]*Node, 0, len(ids))
	for id := range ids {
		if node := m.nodes[id]; node != nil {
			nodes = append(nodes, node.Clone())
		}
	}
	SortNodesByID(nodes)
	return nodes, nil
}

// FindNodesByProperty returns every node whose properties[key] equals
// value, sorted by id, via a linear scan over all nodes. Equality
// follows PropertyValueEquals (numeric coercion, strict strings/bools).
func (m *MemoryEngine) FindNodesByProperty(key string, value any) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	nodes := make([]*Node, 0)
	for _, node := range m.nodes {
		stored, ok := node.Properties[key]
		if !ok {
			continue
		}
		if PropertyValueEquals(stored, value) {
			nodes = append(nodes, node.Clone())
		}
	}
	SortNodesByID(nodes)
	return nodes, nil
}

// CreateEdge stores a new edge.
//
// Returns:
//   - ErrUnknownNode if either endpoint does not exist
//   - ErrDuplicateID if an edge with this id exists
func (m *MemoryEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.edges[edge.ID]; exists {
		return ErrDuplicateID
	}
	if _, exists := m.nodes[edge.SourceID]; !exists {
		return ErrUnknownNode
	}
	if _, exists := m.nodes[edge.TargetID]; !exists {
		return ErrUnknownNode
	}

	m.storeEdgeLocked(edge)
	return nil
}

// GetEdge returns a copy of the edge with the given id, or ErrNotFound.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	edge, exists := m.edges[id]
	if !exists {
		return nil, ErrNotFound
	}
	return edge.Clone(), nil
}

// DeleteEdge removes an edge by id.
func (m *MemoryEngine) DeleteEdge(id EdgeID) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	edge, exists := m.edges[id]
	if !exists {
		return ErrNotFound
	}

	m.removeEdgeLocked(edge)
	return nil
}

// DeleteEdgeBetween removes exactly one edge from source to target and
// returns its id.
//
// When several parallel edges share the endpoint pair, the one with the
// lowest id in IDLess order is removed, so repeated calls peel parallel
// edges off in id order. Returns ErrNotFound when no edge matches
// (including when either endpoint never existed).
func (m *MemoryEngine) DeleteEdgeBetween(source, target NodeID) (EdgeID, error) {
	if source == "" || target == "" {
		return "", ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}

	var match *Edge
	for edgeID := range m.outgoingEdges[source] {
		edge := m.edges[edgeID]
		if edge == nil || edge.TargetID != target {
			continue
		}
		if match == nil || IDLess(string(edge.ID), string(match.ID)) {
			match = edge
		}
	}
	if match == nil {
		return "", ErrNotFound
	}

	m.removeEdgeLocked(match)
	return match.ID, nil
}

// BulkCreateEdges stores several edges atomically: all endpoint and id
// validation happens before the first write.
func (m *MemoryEngine) BulkCreateEdges(edges []*Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	seen := make(map[EdgeID]struct{}, len(edges))
	for _, edge := range edges {
		if edge == nil {
			return ErrInvalidData
		}
		if edge.ID == "" {
			return ErrInvalidID
		}
		if _, exists := m.edges[edge.ID]; exists {
			return ErrDuplicateID
		}
		if _, dup := seen[edge.ID]; dup {
			return ErrDuplicateID
		}
		seen[edge.ID] = struct{}{}
		if _, exists := m.nodes[edge.SourceID]; !exists {
			return ErrUnknownNode
		}
		if _, exists := m.nodes[edge.TargetID]; !exists {
			return ErrUnknownNode
		}
	}

	for _, edge := range edges {
		m.storeEdgeLocked(edge)
	}
	return nil
}

// AllEdges returns copies of every edge, sorted by id.
func (m *MemoryEngine) AllEdges() ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	edges := make([]*Edge, 0, len(m.edges))
	for _, edge := range m.edges {
		edges = append(edges, edge.Clone())
	}
	SortEdgesByID(edges)
	return edges, nil
}

// Neighbors returns the other endpoint of every edge touching the node,
// in either direction, deduplicated by node id and sorted by id.
//
// A self-loop contributes the node itself. Returns ErrNotFound when the
// anchor node does not exist: asking for the neighbors of a deleted node
// is an error, not an empty answer.
func (m *MemoryEngine) Neighbors(id NodeID) ([]*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if _, exists := m.nodes[id]; !exists {
		return nil, ErrNotFound
	}

	others := make(map[NodeID]struct{})
	for edgeID := range m.outgoingEdges[id] {
		if edge := m.edges[edgeID]; edge != nil {
			others[edge.TargetID] = struct{}{}
		}
	}
	for edgeID := range m.incomingEdges[id] {
		if edge := m.edges[edgeID]; edge != nil {
			others[edge.SourceID] = struct{}{}
		}
	}

	nodes := make([]*Node, 0, len(others))
	for otherID := range others {
		if node := m.nodes[otherID]; node != nil {
			nodes = append(nodes, node.Clone())
		}
	}
	SortNodesByID(nodes)
	return nodes, nil
}

// NodeCount returns the number of nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return int64(len(m.edges)), nil
}

// Close releases all memory. Idempotent; every later operation returns
// ErrClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.nodes = nil
	m.edges = nil
	m.nodesByType = nil
	m.outgoingEdges = nil
	m.incomingEdges = nil
	return nil
}

// storeNodeLocked inserts a validated node. Caller holds m.mu.
func (m *MemoryEngine) storeNodeLocked(node *Node) {
	stored := node.Clone()
	m.nodes[stored.ID] = stored

	if stored.Type != "" {
		if m.nodesByType[stored.Type] == nil {
			m.nodesByType[stored.Type] = make(map[NodeID]struct{})
		}
		m.nodesByType[stored.Type][stored.ID] = struct{}{}
	}
}

// storeEdgeLocked inserts a validated edge. Caller holds m.mu.
func (m *MemoryEngine) storeEdgeLocked(edge *Edge) {
	stored := edge.Clone()
	m.edges[stored.ID] = stored

	if m.outgoingEdges[stored.SourceID] == nil {
		m.outgoingEdges[stored.SourceID] = make(map[EdgeID]struct{})
	}
	m.outgoingEdges[stored.SourceID][stored.ID] = struct{}{}

	if m.incomingEdges[stored.TargetID] == nil {
		m.incomingEdges[stored.TargetID] = make(map[EdgeID]struct{})
	}
	m.incomingEdges[stored.TargetID][stored.ID] = struct{}{}
}

// removeEdgeLocked deletes an edge and its index entries. Caller holds m.mu.
func (m *MemoryEngine) removeEdgeLocked(edge *Edge) {
	if outgoing := m.outgoingEdges[edge.SourceID]; outgoing != nil {
		delete(outgoing, edge.ID)
	}
	if incoming := m.incomingEdges[edge.TargetID]; incoming != nil {
		delete(incoming, edge.ID)
	}
	delete(m.edges, edge.ID)
}

// Verify MemoryEngine implements Engine
var _ Engine = (*MemoryEngine)(nil)
