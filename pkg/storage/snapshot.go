package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Snapshot file layout inside the snapshot directory.
const (
	snapshotNodesFile    = "nodes.json"
	snapshotEdgesFile    = "edges.json"
	snapshotManifestFile = "manifest.json"
)

// snapshotFormatVersion is bumped when the file layout changes shape.
const snapshotFormatVersion = 1

// ExportNode is the portable JSON form of a Node. The embedding travels
// under the key "vector" in exported documents.
type ExportNode struct {
	ID         string         `json:"id"`
	Type       string         `json:"type,omitempty"`
	Properties map[string]any `json:"properties"`
	Vector     []float32      `json:"vector,omitempty"`
}

// ExportEdge is the portable JSON form of an Edge.
type ExportEdge struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// NewExportNode converts a Node to its portable form.
func NewExportNode(n *Node) ExportNode {
	return ExportNode{
		ID:         string(n.ID),
		Type:       n.Type,
		Properties: n.Properties,
		Vector:     n.Embedding,
	}
}

// ToNode converts a portable record back to a Node.
func (e ExportNode) ToNode() *Node {
	return &Node{
		ID:         NodeID(e.ID),
		Type:       e.Type,
		Properties: e.Properties,
		Embedding:  e.Vector,
	}
}

// NewExportEdge converts an Edge to its portable form.
func NewExportEdge(e *Edge) ExportEdge {
	return ExportEdge{
		ID:       string(e.ID),
		SourceID: string(e.SourceID),
		TargetID: string(e.TargetID),
		Relation: e.Relation,
		Weight:   e.Weight,
	}
}

// ToEdge converts a portable record back to an Edge.
func (e ExportEdge) ToEdge() *Edge {
	return &Edge{
		ID:       EdgeID(e.ID),
		SourceID: NodeID(e.SourceID),
		TargetID: NodeID(e.TargetID),
		Relation: e.Relation,
		Weight:   e.Weight,
	}
}

// SnapshotManifest describes a snapshot directory: counts, the vector length
// the store was opened with, and a BLAKE2b-256 checksum per data file so a
// truncated or hand-edited snapshot is rejected on load instead of silently
// importing garbage.
type SnapshotManifest struct {
	FormatVersion int               `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at"`
	NodeCount     int               `json:"node_count"`
	EdgeCount     int               `json:"edge_count"`
	VectorLength  int               `json:"vector_length"`
	Checksums     map[string]string `json:"checksums"`
}

func checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WriteSnapshot writes nodes and edges as JSON documents into dir, together
// with a manifest carrying checksums. The directory is created if needed;
// existing snapshot files are overwritten.
func WriteSnapshot(dir string, nodes []*Node, edges []*Edge, vectorLength int) (*SnapshotManifest, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	exportNodes := make([]ExportNode, len(nodes))
	for i, n := range nodes {
		exportNodes[i] = NewExportNode(n)
	}
	exportEdges := make([]ExportEdge, len(edges))
	for i, e := range edges {
		exportEdges[i] = NewExportEdge(e)
	}

	nodeData, err := json.MarshalIndent(exportNodes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode nodes: %w", err)
	}
	edgeData, err := json.MarshalIndent(exportEdges, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode edges: %w", err)
	}

	manifest := &SnapshotManifest{
		FormatVersion: snapshotFormatVersion,
		CreatedAt:     time.Now().UTC(),
		NodeCount:     len(nodes),
		EdgeCount:     len(edges),
		VectorLength:  vectorLength,
		Checksums: map[string]string{
			snapshotNodesFile: checksum(nodeData),
			snapshotEdgesFile: checksum(edgeData),
		},
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, snapshotNodesFile), nodeData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write nodes file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, snapshotEdgesFile), edgeData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write edges file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, snapshotManifestFile), manifestData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	return manifest, nil
}

// ReadSnapshot loads a snapshot directory written by WriteSnapshot. Every
// data file is checked against the manifest checksum before decoding.
func ReadSnapshot(dir string) ([]*Node, []*Edge, *SnapshotManifest, error) {
	manifestData, err := os.ReadFile(filepath.Join(dir, snapshotManifestFile))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest SnapshotManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if manifest.FormatVersion != snapshotFormatVersion {
		return nil, nil, nil, fmt.Errorf("unsupported snapshot format version %d", manifest.FormatVersion)
	}

	readVerified := func(name string) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		want, ok := manifest.Checksums[name]
		if !ok {
			return nil, fmt.Errorf("manifest has no checksum for %s", name)
		}
		if got := checksum(data); got != want {
			return nil, fmt.Errorf("checksum mismatch for %s", name)
		}
		return data, nil
	}

	nodeData, err := readVerified(snapshotNodesFile)
	if err != nil {
		return nil, nil, nil, err
	}
	edgeData, err := readVerified(snapshotEdgesFile)
	if err != nil {
		return nil, nil, nil, err
	}

	var exportNodes []ExportNode
	if err := json.Unmarshal(nodeData, &exportNodes); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode nodes: %w", err)
	}
	var exportEdges []ExportEdge
	if err := json.Unmarshal(edgeData, &exportEdges); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode edges: %w", err)
	}

	nodes := make([]*Node, len(exportNodes))
	for i, en := range exportNodes {
		nodes[i] = en.ToNode()
	}
	edges := make([]*Edge, len(exportEdges))
	for i, ee := range exportEdges {
		edges[i] = ee.ToEdge()
	}

	return nodes, edges, &manifest, nil
}
