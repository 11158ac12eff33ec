package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()

	nodes := []*Node{
		{ID: "1", Type: "Person", Properties: map[string]any{"name": "Alice"}, Embedding: []float32{1, 2, 3}},
		{ID: "2"},
	}
	edges := []*Edge{
		{ID: "e1", SourceID: "1", TargetID: "2", Relation: "KNOWS", Weight: 0.5},
	}

	manifest, err := WriteSnapshot(dir, nodes, edges, 3)
	if err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}
	if manifest.NodeCount != 2 || manifest.EdgeCount != 1 || manifest.VectorLength != 3 {
		t.Errorf("unexpected manifest counts: %+v", manifest)
	}
	if len(manifest.Checksums) != 2 {
		t.Errorf("expected 2 checksums, got %d", len(manifest.Checksums))
	}

	gotNodes, gotEdges, gotManifest, err := ReadSnapshot(dir)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if gotManifest.NodeCount != 2 {
		t.Errorf("manifest NodeCount = %d, want 2", gotManifest.NodeCount)
	}
	if len(gotNodes) != 2 || len(gotEdges) != 1 {
		t.Fatalf("got %d nodes, %d edges; want 2, 1", len(gotNodes), len(gotEdges))
	}
	if gotNodes[0].ID != "1" || gotNodes[0].Properties["name"] != "Alice" {
		t.Errorf("node round trip failed: %+v", gotNodes[0])
	}
	if len(gotNodes[0].Embedding) != 3 || gotNodes[0].Embedding[2] != 3 {
		t.Errorf("embedding round trip failed: %v", gotNodes[0].Embedding)
	}
	if gotEdges[0].Relation != "KNOWS" || gotEdges[0].Weight != 0.5 {
		t.Errorf("edge round trip failed: %+v", gotEdges[0])
	}
}

func TestSnapshotExportKeyNames(t *testing.T) {
	dir := t.TempDir()

	nodes := []*Node{{ID: "n", Embedding: []float32{1}}}
	if _, err := WriteSnapshot(dir, nodes, nil, 1); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "nodes.json"))
	if err != nil {
		t.Fatalf("failed to read nodes.json: %v", err)
	}

	// The portable format names the embedding "vector".
	if !strings.Contains(string(data), `"vector"`) {
		t.Errorf("nodes.json should carry embeddings under \"vector\": %s", data)
	}
	if strings.Contains(string(data), `"embedding"`) {
		t.Errorf("nodes.json should not use the internal key name: %s", data)
	}
}

func TestSnapshotChecksumVerification(t *testing.T) {
	dir := t.TempDir()

	if _, err := WriteSnapshot(dir, []*Node{{ID: "1"}}, nil, 0); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	// Corrupt the nodes file; the manifest checksum must reject it.
	path := filepath.Join(dir, "nodes.json")
	if err := os.WriteFile(path, []byte(`[{"id":"tampered"}]`), 0644); err != nil {
		t.Fatalf("failed to corrupt nodes file: %v", err)
	}

	_, _, _, err := ReadSnapshot(dir)
	if err == nil {
		t.Fatal("expected checksum error for corrupted snapshot")
	}
	if !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("expected checksum mismatch error, got: %v", err)
	}
}

func TestSnapshotMissingManifest(t *testing.T) {
	if _, _, _, err := ReadSnapshot(t.TempDir()); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
