// Tests for the BadgerDB-backed storage engine. Most contract behavior is
// shared with MemoryEngine; these focus on persistence, transactional
// cascades, and index-backed scans.
package storage

import (
	"context"
	"errors"
	"testing"
)

func newTestBadgerEngine(t *testing.T) *BadgerEngine {
	t.Helper()
	engine, err := NewBadgerEngineInMemory()
	if err != nil {
		t.Fatalf("failed to create in-memory badger engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestBadgerEngineNodeCRUD(t *testing.T) {
	engine := newTestBadgerEngine(t)

	node := &Node{
		ID:         "1",
		Type:       "Person",
		Properties: map[string]any{"name": "Alice", "age": float64(30)},
		Embedding:  []float32{0.1, 0.2, 0.3},
	}
	if err := engine.CreateNode(node); err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}

	got, err := engine.GetNode("1")
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if got.Type != "Person" {
		t.Errorf("Type = %q, want Person", got.Type)
	}
	if got.Properties["name"] != "Alice" {
		t.Errorf("name = %v, want Alice", got.Properties["name"])
	}
	if len(got.Embedding) != 3 || got.Embedding[2] != 0.3 {
		t.Errorf("embedding round trip failed: %v", got.Embedding)
	}

	if err := engine.CreateNode(&Node{ID: "1"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := engine.GetNode("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := engine.DeleteNode("1"); err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}
	if _, err := engine.GetNode("1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBadgerEnginePersistence(t *testing.T) {
	dir := t.TempDir()

	engine, err := NewBadgerEngine(dir)
	if err != nil {
		t.Fatalf("failed to open badger engine: %v", err)
	}

	if err := engine.CreateNode(&Node{ID: "persist", Type: "Doc", Embedding: []float32{1, 2}}); err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	if err := engine.CreateNode(&Node{ID: "other"}); err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	if err := engine.CreateEdge(&Edge{ID: "e1", SourceID: "persist", TargetID: "other", Relation: "REL", Weight: 2.5}); err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen from the same directory; everything must still be there.
	reopened, err := NewBadgerEngine(dir)
	if err != nil {
		t.Fatalf("failed to reopen badger engine: %v", err)
	}
	defer reopened.Close()

	node, err := reopened.GetNode("persist")
	if err != nil {
		t.Fatalf("GetNode after reopen failed: %v", err)
	}
	if node.Type != "Doc" || len(node.Embedding) != 2 {
		t.Errorf("node did not survive reopen intact: %+v", node)
	}

	edge, err := reopened.GetEdge("e1")
	if err != nil {
		t.Fatalf("GetEdge after reopen failed: %v", err)
	}
	if edge.Relation != "REL" || edge.Weight != 2.5 {
		t.Errorf("edge did not survive reopen intact: %+v", edge)
	}

	// Secondary indexes must survive too.
	byType, err := reopened.NodesByType("Doc")
	if err != nil {
		t.Fatalf("NodesByType after reopen failed: %v", err)
	}
	if len(byType) != 1 || byType[0].ID != "persist" {
		t.Errorf("type index did not survive reopen: %v", byType)
	}

	neighbors, err := reopened.Neighbors("persist")
	if err != nil {
		t.Fatalf("Neighbors after reopen failed: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].ID != "other" {
		t.Errorf("adjacency index did not survive reopen: %v", neighbors)
	}
}

func TestBadgerEngineDeleteCascade(t *testing.T) {
	engine := newTestBadgerEngine(t)

	for _, id := range []NodeID{"a", "b", "c"} {
		if err := engine.CreateNode(&Node{ID: id}); err != nil {
			t.Fatalf("CreateNode(%s) failed: %v", id, err)
		}
	}
	edges := []*Edge{
		{ID: "e1", SourceID: "a", TargetID: "b"},
		{ID: "e2", SourceID: "b", TargetID: "a"},
		{ID: "e3", SourceID: "b", TargetID: "c"},
		{ID: "e4", SourceID: "a", TargetID: "a"},
	}
	if err := engine.BulkCreateEdges(edges); err != nil {
		t.Fatalf("BulkCreateEdges failed: %v", err)
	}

	if err := engine.DeleteNode("a"); err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}

	for _, id := range []EdgeID{"e1", "e2", "e4"} {
		if _, err := engine.GetEdge(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("edge %s should be cascaded away, got %v", id, err)
		}
	}
	if _, err := engine.GetEdge("e3"); err != nil {
		t.Errorf("edge e3 should survive: %v", err)
	}

	count, err := engine.EdgeCount()
	if err != nil {
		t.Fatalf("EdgeCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("EdgeCount = %d, want 1", count)
	}
}

func TestBadgerEngineDeleteEdgeBetween(t *testing.T) {
	engine := newTestBadgerEngine(t)

	for _, id := range []NodeID{"a", "b"} {
		if err := engine.CreateNode(&Node{ID: id}); err != nil {
			t.Fatalf("CreateNode failed: %v", err)
		}
	}
	if err := engine.BulkCreateEdges([]*Edge{
		{ID: "9", SourceID: "a", TargetID: "b"},
		{ID: "11", SourceID: "a", TargetID: "b"},
		{ID: "3", SourceID: "a", TargetID: "b"},
	}); err != nil {
		t.Fatalf("BulkCreateEdges failed: %v", err)
	}

	for _, want := range []EdgeID{"3", "9", "11"} {
		id, err := engine.DeleteEdgeBetween("a", "b")
		if err != nil {
			t.Fatalf("DeleteEdgeBetween failed: %v", err)
		}
		if id != want {
			t.Errorf("deleted edge id = %s, want %s", id, want)
		}
	}

	if _, err := engine.DeleteEdgeBetween("a", "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound when no edges remain, got %v", err)
	}
}

func TestBadgerEngineBulkAtomicity(t *testing.T) {
	engine := newTestBadgerEngine(t)

	if err := engine.CreateNode(&Node{ID: "existing"}); err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}

	err := engine.BulkCreateNodes([]*Node{
		{ID: "n1"},
		{ID: "existing"},
	})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := engine.GetNode("n1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("n1 should not exist after failed bulk create")
	}

	err = engine.BulkCreateEdges([]*Edge{
		{ID: "e1", SourceID: "existing", TargetID: "existing"},
		{ID: "e2", SourceID: "existing", TargetID: "ghost"},
	})
	if !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
	if _, err := engine.GetEdge("e1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("e1 should not exist after failed bulk create")
	}
}

func TestBadgerEngineNodesByType(t *testing.T) {
	engine := newTestBadgerEngine(t)

	if err := engine.BulkCreateNodes([]*Node{
		{ID: "2", Type: "Person"},
		{ID: "10", Type: "Person"},
		{ID: "1", Type: "City"},
		{ID: "3"},
	}); err != nil {
		t.Fatalf("BulkCreateNodes failed: %v", err)
	}

	got, err := engine.NodesByType("Person")
	if err != nil {
		t.Fatalf("NodesByType failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "10" {
		t.Errorf("unexpected Person nodes: %v", nodeIDs(got))
	}

	got, err = engine.NodesByType("person")
	if err != nil {
		t.Fatalf("NodesByType failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("type match must be case-sensitive, got %v", nodeIDs(got))
	}

	got, err = engine.NodesByType("")
	if err != nil {
		t.Fatalf("NodesByType failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "3" {
		t.Errorf("unexpected untyped nodes: %v", nodeIDs(got))
	}
}

func TestBadgerEngineStreaming(t *testing.T) {
	engine := newTestBadgerEngine(t)

	if err := engine.BulkCreateNodes([]*Node{
		{ID: "1"}, {ID: "2"}, {ID: "3"},
	}); err != nil {
		t.Fatalf("BulkCreateNodes failed: %v", err)
	}

	t.Run("visits all nodes", func(t *testing.T) {
		var count int
		err := engine.StreamNodes(context.Background(), func(n *Node) error {
			count++
			return nil
		})
		if err != nil {
			t.Fatalf("StreamNodes failed: %v", err)
		}
		if count != 3 {
			t.Errorf("visited %d nodes, want 3", count)
		}
	})

	t.Run("early stop is not an error", func(t *testing.T) {
		var count int
		err := engine.StreamNodes(context.Background(), func(n *Node) error {
			count++
			return ErrIterationStopped
		})
		if err != nil {
			t.Fatalf("StreamNodes failed: %v", err)
		}
		if count != 1 {
			t.Errorf("visited %d nodes, want 1", count)
		}
	})

	t.Run("context cancellation aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := engine.StreamNodes(ctx, func(n *Node) error { return nil })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
