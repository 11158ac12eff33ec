package munindb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orneryd/munindb/pkg/storage"
)

// NodesToJSON serializes every node as a JSON array of full records. The
// embedding travels under the key "vector"; properties are passed through
// structurally, never flattened. Records are ordered by node id so repeated
// exports of unchanged data are byte-identical.
//
// Example element:
//
//	{
//	  "id": "1",
//	  "type": "Person",
//	  "properties": {"name": "George Washington"},
//	  "vector": [0.1, 0.2, 0.3]
//	}
func (db *DB) NodesToJSON(ctx context.Context) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}

	nodes, err := db.engine.AllNodes()
	if err != nil {
		return nil, err
	}
	storage.SortNodesByID(nodes)

	out := make([]storage.ExportNode, len(nodes))
	for i, n := range nodes {
		out[i] = storage.NewExportNode(n)
	}
	return json.MarshalIndent(out, "", "  ")
}

// EdgesToJSON serializes every edge as a JSON array of full records,
// ordered by edge id.
func (db *DB) EdgesToJSON(ctx context.Context) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrClosed
	}

	edges, err := db.engine.AllEdges()
	if err != nil {
		return nil, err
	}
	storage.SortEdgesByID(edges)

	out := make([]storage.ExportEdge, len(edges))
	for i, e := range edges {
		out[i] = storage.NewExportEdge(e)
	}
	return json.MarshalIndent(out, "", "  ")
}

// Export writes a checksummed snapshot of the whole graph into dir:
// nodes.json, edges.json, and a manifest with per-file BLAKE2b checksums.
// The directory is created if needed.
func (db *DB) Export(ctx context.Context, dir string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return ErrClosed
	}

	nodes, err := db.engine.AllNodes()
	if err != nil {
		return err
	}
	edges, err := db.engine.AllEdges()
	if err != nil {
		return err
	}

	manifest, err := storage.WriteSnapshot(dir, nodes, edges, db.config.VectorLength)
	if err != nil {
		return err
	}

	db.logger.Debug("snapshot exported", "dir", dir, "nodes", manifest.NodeCount, "edges", manifest.EdgeCount)
	return nil
}

// Import loads a snapshot written by Export into this store.
//
// The snapshot's vector length must match the store's, and every node
// record is held to the same embedding rules as InsertNode: an absent
// vector is zero-filled, any other length mismatch fails the whole import
// with ErrDimensionMismatch before anything is written. A manifest cannot
// vouch for its records, so each one is checked. Records land via the
// bulk-insert path, so ids colliding with existing records fail the node
// phase (or the edge phase) as a whole; importing into an empty store
// sidesteps that. A failure between the two phases leaves the imported
// nodes without their edges, which the returned error spells out.
func (db *DB) Import(ctx context.Context, dir string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}

	nodes, edges, manifest, err := storage.ReadSnapshot(dir)
	if err != nil {
		return err
	}
	if manifest.VectorLength != db.config.VectorLength {
		return fmt.Errorf("snapshot has %d-dimensional embeddings, store is configured for %d: %w",
			manifest.VectorLength, db.config.VectorLength, ErrDimensionMismatch)
	}
	for _, n := range nodes {
		if err := db.normalizeEmbedding(n); err != nil {
			return fmt.Errorf("snapshot node %q: %w", n.ID, err)
		}
	}

	if len(nodes) > 0 {
		if err := db.engine.BulkCreateNodes(nodes); err != nil {
			return fmt.Errorf("import nodes: %w", err)
		}
		for _, n := range nodes {
			db.nodeIDs.Observe(string(n.ID))
		}
		db.generation.Add(1)
	}

	if len(edges) > 0 {
		if err := db.engine.BulkCreateEdges(edges); err != nil {
			return fmt.Errorf("import edges (nodes already imported): %w", err)
		}
		for _, e := range edges {
			db.edgeIDs.Observe(string(e.ID))
		}
	}

	db.logger.Debug("snapshot imported", "dir", dir, "nodes", len(nodes), "edges", len(edges))
	return nil
}
