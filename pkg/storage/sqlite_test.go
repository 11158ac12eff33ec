// Tests for the SQLite-backed storage engine: round trips through the
// relational encoding, persistence across reopen, and raw SQL execution.
package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLiteEngine(t *testing.T) *SQLiteEngine {
	t.Helper()
	engine, err := NewSQLiteEngine(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteEngine failed: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestSQLiteEngineNodeRoundTrip(t *testing.T) {
	engine := newTestSQLiteEngine(t)

	node := &Node{
		ID:         "1",
		Type:       "Person",
		Properties: map[string]any{"name": "Alice", "age": float64(30), "active": true},
		Embedding:  []float32{0.25, -1.5, 3},
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
	if got.Properties["age"] != float64(30) {
		t.Errorf("age = %v (%T), want 30", got.Properties["age"], got.Properties["age"])
	}
	if got.Properties["active"] != true {
		t.Errorf("active = %v, want true", got.Properties["active"])
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 0.25 || got.Embedding[1] != -1.5 {
		t.Errorf("embedding blob round trip failed: %v", got.Embedding)
	}

	if err := engine.CreateNode(&Node{ID: "1"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestSQLiteEnginePersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := NewSQLiteEngine(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteEngine failed: %v", err)
	}
	if err := s1.BulkCreateNodes([]*Node{
		{ID: "a", Type: "Doc", Embedding: []float32{1, 2}},
		{ID: "b"},
	}); err != nil {
		t.Fatalf("BulkCreateNodes failed: %v", err)
	}
	if err := s1.CreateEdge(&Edge{ID: "e", SourceID: "a", TargetID: "b", Relation: "REL", Weight: 0.75}); err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := NewSQLiteEngine(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	node, err := s2.GetNode("a")
	if err != nil {
		t.Fatalf("GetNode after reopen failed: %v", err)
	}
	if node.Type != "Doc" || len(node.Embedding) != 2 {
		t.Errorf("node did not survive reopen intact: %+v", node)
	}

	edge, err := s2.GetEdge("e")
	if err != nil {
		t.Fatalf("GetEdge after reopen failed: %v", err)
	}
	if edge.Weight != 0.75 || edge.Relation != "REL" {
		t.Errorf("edge did not survive reopen intact: %+v", edge)
	}
}

func TestSQLiteEngineDeleteCascade(t *testing.T) {
	engine := newTestSQLiteEngine(t)

	if err := engine.BulkCreateNodes([]*Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}); err != nil {
		t.Fatalf("BulkCreateNodes failed: %v", err)
	}
	if err := engine.BulkCreateEdges([]*Edge{
		{ID: "e1", SourceID: "a", TargetID: "b"},
		{ID: "e2", SourceID: "b", TargetID: "a"},
		{ID: "e3", SourceID: "b", TargetID: "c"},
	}); err != nil {
		t.Fatalf("BulkCreateEdges failed: %v", err)
	}

	if err := engine.DeleteNode("a"); err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}

	edges, err := engine.AllEdges()
	if err != nil {
		t.Fatalf("AllEdges failed: %v", err)
	}
	if len(edges) != 1 || edges[0].ID != "e3" {
		t.Errorf("cascade left wrong edges: %v", edges)
	}

	if err := engine.DeleteNode("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteEngineDeleteEdgeBetween(t *testing.T) {
	engine := newTestSQLiteEngine(t)

	if err := engine.BulkCreateNodes([]*Node{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("BulkCreateNodes failed: %v", err)
	}
	if err := engine.BulkCreateEdges([]*Edge{
		{ID: "20", SourceID: "a", TargetID: "b"},
		{ID: "4", SourceID: "a", TargetID: "b"},
		{ID: "19", SourceID: "a", TargetID: "b"},
	}); err != nil {
		t.Fatalf("BulkCreateEdges failed: %v", err)
	}

	for _, want := range []EdgeID{"4", "19", "20"} {
		id, err := engine.DeleteEdgeBetween("a", "b")
		if err != nil {
			t.Fatalf("DeleteEdgeBetween failed: %v", err)
		}
		if id != want {
			t.Errorf("deleted edge id = %s, want %s", id, want)
		}
	}
	if _, err := engine.DeleteEdgeBetween("a", "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteEngineNeighbors(t *testing.T) {
	engine := newTestSQLiteEngine(t)

	if err := engine.BulkCreateNodes([]*Node{{ID: "1"}, {ID: "2"}, {ID: "3"}}); err != nil {
		t.Fatalf("BulkCreateNodes failed: %v", err)
	}
	if err := engine.BulkCreateEdges([]*Edge{
		{ID: "e1", SourceID: "1", TargetID: "2"},
		{ID: "e2", SourceID: "3", TargetID: "1"},
		{ID: "e3", SourceID: "1", TargetID: "2"},
	}); err != nil {
		t.Fatalf("BulkCreateEdges failed: %v", err)
	}

	got, err := engine.Neighbors("1")
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "3" {
		t.Errorf("unexpected neighbors: %v", nodeIDs(got))
	}

	if _, err := engine.Neighbors("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteEngineFindNodesByProperty(t *testing.T) {
	engine := newTestSQLiteEngine(t)

	if err := engine.BulkCreateNodes([]*Node{
		{ID: "1", Properties: map[string]any{"age": 57}},
		{ID: "2", Properties: map[string]any{"age": "57"}},
		{ID: "3", Properties: map[string]any{"age": 58}},
		{ID: "4"},
	}); err != nil {
		t.Fatalf("BulkCreateNodes failed: %v", err)
	}

	// Stored through JSON, the int comes back float64; the query-side int
	// must still match it, and the string form must stay distinct.
	got, err := engine.FindNodesByProperty("age", 57)
	if err != nil {
		t.Fatalf("FindNodesByProperty failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("unexpected result: %v", nodeIDs(got))
	}

	got, err = engine.FindNodesByProperty("age", "57")
	if err != nil {
		t.Fatalf("FindNodesByProperty failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("unexpected result: %v", nodeIDs(got))
	}
}

func TestSQLiteEngineExecuteSQL(t *testing.T) {
	engine := newTestSQLiteEngine(t)

	if err := engine.BulkCreateNodes([]*Node{
		{ID: "1", Type: "Person", Properties: map[string]any{"name": "George Washington"}},
		{ID: "2", Type: "Person", Properties: map[string]any{"name": "Martha Washington"}},
		{ID: "3", Type: "City", Properties: map[string]any{"name": "Alexandria"}},
	}); err != nil {
		t.Fatalf("BulkCreateNodes failed: %v", err)
	}

	columns, rows, err := engine.ExecuteSQL(context.Background(),
		`SELECT id FROM nodes WHERE type = 'Person' AND json_extract(properties, '$.name') = 'George Washington'`)
	if err != nil {
		t.Fatalf("ExecuteSQL failed: %v", err)
	}
	if len(columns) != 1 || columns[0] != "id" {
		t.Errorf("unexpected columns: %v", columns)
	}
	if len(rows) != 1 || rows[0][0] != "1" {
		t.Errorf("unexpected rows: %v", rows)
	}

	if _, _, err := engine.ExecuteSQL(context.Background(), "SELECT * FROM missing_table"); err == nil {
		t.Error("expected error for invalid SQL")
	}
}
