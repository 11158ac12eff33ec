package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"github.com/orneryd/munindb/pkg/pool"
)

// SQLiteEngine is a persistent storage implementation backed by a single
// SQLite database file. It is the only engine that can also execute raw SQL,
// which the declarative query passthrough depends on.
//
// Schema:
//
//	nodes(id TEXT PRIMARY KEY, type TEXT, properties TEXT, embedding BLOB)
//	edges(id TEXT PRIMARY KEY, source_id TEXT, target_id TEXT, relation TEXT, weight REAL)
//
// Properties are stored as JSON text so SQL can reach into them with
// json_extract. Embeddings are stored as little-endian float32 blobs.
type SQLiteEngine struct {
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteEngine opens (or creates) a SQLite database at the given path.
// Pass ":memory:" for an ephemeral database.
func NewSQLiteEngine(path string) (*SQLiteEngine, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteEngine{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteEngine) init() error {
	// Configure SQLite
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	// Create tables
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT '',
			properties TEXT,
			embedding BLOB
		);
		CREATE TABLE IF NOT EXISTS edges (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL REFERENCES nodes(id),
			target_id TEXT NOT NULL REFERENCES nodes(id),
			relation TEXT NOT NULL DEFAULT '',
			weight REAL NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);
		CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
		CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}

	return nil
}

// Path returns the database file path.
func (s *SQLiteEngine) Path() string {
	return s.path
}

// ============================================================================
// Row encoding helpers
// ============================================================================

// appendFloat32LE appends each float32 as 4 little-endian bytes, forming
// the embedding blob format: element i occupies bytes [4i, 4i+4).
func appendFloat32LE(dst []byte, f []float32) []byte {
	for _, v := range f {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// decodeFloat32Slice converts a little-endian byte blob back to []float32.
func decodeFloat32Slice(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	f := make([]float32, len(b)/4)
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return f
}

func encodeProperties(props map[string]any) (sql.NullString, error) {
	if props == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode properties: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(sc rowScanner) (*Node, error) {
	var (
		id       string
		nodeType string
		props    sql.NullString
		emb      []byte
	)
	if err := sc.Scan(&id, &nodeType, &props, &emb); err != nil {
		return nil, err
	}

	node := &Node{
		ID:        NodeID(id),
		Type:      nodeType,
		Embedding: decodeFloat32Slice(emb),
	}
	if props.Valid {
		if err := json.Unmarshal([]byte(props.String), &node.Properties); err != nil {
			return nil, fmt.Errorf("failed to decode properties: %w", err)
		}
	}
	return node, nil
}

func scanEdge(sc rowScanner) (*Edge, error) {
	var (
		id       string
		sourceID string
		targetID string
		relation string
		weight   float64
	)
	if err := sc.Scan(&id, &sourceID, &targetID, &relation, &weight); err != nil {
		return nil, err
	}

	return &Edge{
		ID:       EdgeID(id),
		SourceID: NodeID(sourceID),
		TargetID: NodeID(targetID),
		Relation: relation,
		Weight:   weight,
	}, nil
}

func (s *SQLiteEngine) nodeExistsTx(ctx context.Context, tx *sql.Tx, id NodeID) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM nodes WHERE id = ?", string(id)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteEngine) edgeExistsTx(ctx context.Context, tx *sql.Tx, id EdgeID) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM edges WHERE id = ?", string(id)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ============================================================================
// Node Operations
// ============================================================================

// CreateNode stores a new node.
func (s *SQLiteEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if s.closed {
		return ErrClosed
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	exists, err := s.nodeExistsTx(ctx, tx, node.ID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateID
	}

	props, err := encodeProperties(node.Properties)
	if err != nil {
		return err
	}

	// A nil embedding stays NULL; the blob buffer is scratch the driver
	// copies during Exec.
	var blob []byte
	if node.Embedding != nil {
		blob = appendFloat32LE(pool.GetByteBuffer(), node.Embedding)
		defer pool.PutByteBuffer(blob)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO nodes (id, type, properties, embedding) VALUES (?, ?, ?, ?)",
		string(node.ID), node.Type, props, blob)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetNode retrieves a node by id.
func (s *SQLiteEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if s.closed {
		return nil, ErrClosed
	}

	row := s.db.QueryRow(
		"SELECT id, type, properties, embedding FROM nodes WHERE id = ?", string(id))
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

// DeleteNode removes a node and every edge touching it, in one transaction.
func (s *SQLiteEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}
	if s.closed {
		return ErrClosed
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Cascade first, then the node, so foreign keys never block the delete.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM edges WHERE source_id = ? OR target_id = ?", string(id), string(id)); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// BulkCreateNodes stores several nodes in one transaction, validating every
// record (including ids repeated inside the batch) before the first insert.
func (s *SQLiteEngine) BulkCreateNodes(nodes []*Node) error {
	if s.closed {
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

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seen := make(map[NodeID]struct{}, len(nodes))
	for _, node := range nodes {
		exists, err := s.nodeExistsTx(ctx, tx, node.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateID
		}
		if _, dup := seen[node.ID]; dup {
			return ErrDuplicateID
		}
		seen[node.ID] = struct{}{}
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO nodes (id, type, properties, embedding) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	// One scratch buffer serves the whole batch; the driver copies the
	// blob during each Exec.
	buf := pool.GetByteBuffer()
	defer func() { pool.PutByteBuffer(buf) }()

	for _, node := range nodes {
		props, err := encodeProperties(node.Properties)
		if err != nil {
			return err
		}
		var blob []byte
		if node.Embedding != nil {
			buf = appendFloat32LE(buf[:0], node.Embedding)
			blob = buf
		}
		if _, err := stmt.ExecContext(ctx,
			string(node.ID), node.Type, props, blob); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AllNodes returns all nodes, sorted by id.
func (s *SQLiteEngine) AllNodes() ([]*Node, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.queryNodes("SELECT id, type, properties, embedding FROM nodes")
}

// NodesByType returns all nodes with the exact type label, sorted by id.
func (s *SQLiteEngine) NodesByType(nodeType string) ([]*Node, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.queryNodes(
		"SELECT id, type, properties, embedding FROM nodes WHERE type = ?", nodeType)
}

// FindNodesByProperty returns all nodes whose properties[key] equals value,
// sorted by id.
//
// Matching happens in Go via PropertyValueEquals rather than in SQL, so
// numeric coercion behaves identically across all engines.
func (s *SQLiteEngine) FindNodesByProperty(key string, value any) ([]*Node, error) {
	if s.closed {
		return nil, ErrClosed
	}

	all, err := s.queryNodes(
		"SELECT id, type, properties, embedding FROM nodes WHERE properties IS NOT NULL")
	if err != nil {
		return nil, err
	}

	nodes := make([]*Node, 0)
	for _, node := range all {
		stored, ok := node.Properties[key]
		if !ok {
			continue
		}
		if PropertyValueEquals(stored, value) {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func (s *SQLiteEngine) queryNodes(query string, args ...any) ([]*Node, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make([]*Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	SortNodesByID(nodes)
	return nodes, nil
}

// ============================================================================
// Edge Operations
// ============================================================================

// CreateEdge stores a new edge between two existing nodes.
func (s *SQLiteEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}
	if s.closed {
		return ErrClosed
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	exists, err := s.edgeExistsTx(ctx, tx, edge.ID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateID
	}

	for _, endpoint := range []NodeID{edge.SourceID, edge.TargetID} {
		ok, err := s.nodeExistsTx(ctx, tx, endpoint)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownNode
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO edges (id, source_id, target_id, relation, weight) VALUES (?, ?, ?, ?, ?)",
		string(edge.ID), string(edge.SourceID), string(edge.TargetID), edge.Relation, edge.Weight)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetEdge retrieves an edge by id.
func (s *SQLiteEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if s.closed {
		return nil, ErrClosed
	}

	row := s.db.QueryRow(
		"SELECT id, source_id, target_id, relation, weight FROM edges WHERE id = ?", string(id))
	edge, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// DeleteEdge removes an edge by id.
func (s *SQLiteEngine) DeleteEdge(id EdgeID) error {
	if id == "" {
		return ErrInvalidID
	}
	if s.closed {
		return ErrClosed
	}

	res, err := s.db.Exec("DELETE FROM edges WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEdgeBetween removes exactly one edge from source to target and
// returns its id, choosing the lowest id in IDLess order among parallel
// edges.
func (s *SQLiteEngine) DeleteEdgeBetween(source, target NodeID) (EdgeID, error) {
	if source == "" || target == "" {
		return "", ErrInvalidID
	}
	if s.closed {
		return "", ErrClosed
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM edges WHERE source_id = ? AND target_id = ?",
		string(source), string(target))
	if err != nil {
		return "", err
	}

	var match EdgeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return "", err
		}
		if match == "" || IDLess(id, string(match)) {
			match = EdgeID(id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return "", err
	}
	rows.Close()

	if match == "" {
		return "", ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM edges WHERE id = ?", string(match)); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return match, nil
}

// BulkCreateEdges stores several edges in one transaction with full
// validation before the first insert.
func (s *SQLiteEngine) BulkCreateEdges(edges []*Edge) error {
	if s.closed {
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

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seen := make(map[EdgeID]struct{}, len(edges))
	for _, edge := range edges {
		exists, err := s.edgeExistsTx(ctx, tx, edge.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateID
		}
		if _, dup := seen[edge.ID]; dup {
			return ErrDuplicateID
		}
		seen[edge.ID] = struct{}{}

		for _, endpoint := range []NodeID{edge.SourceID, edge.TargetID} {
			ok, err := s.nodeExistsTx(ctx, tx, endpoint)
			if err != nil {
				return err
			}
			if !ok {
				return ErrUnknownNode
			}
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO edges (id, source_id, target_id, relation, weight) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, edge := range edges {
		if _, err := stmt.ExecContext(ctx,
			string(edge.ID), string(edge.SourceID), string(edge.TargetID),
			edge.Relation, edge.Weight); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AllEdges returns all edges, sorted by id.
func (s *SQLiteEngine) AllEdges() ([]*Edge, error) {
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.Query("SELECT id, source_id, target_id, relation, weight FROM edges")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := make([]*Edge, 0)
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	SortEdgesByID(edges)
	return edges, nil
}

// Neighbors returns the other endpoint of every edge touching the node,
// deduplicated and sorted by id. Returns ErrNotFound when the anchor node
// does not exist.
func (s *SQLiteEngine) Neighbors(id NodeID) ([]*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if s.closed {
		return nil, ErrClosed
	}

	var one int
	err := s.db.QueryRow("SELECT 1 FROM nodes WHERE id = ?", string(id)).Scan(&one)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// UNION deduplicates; a self-loop contributes the node itself.
	return s.queryNodes(`
		SELECT id, type, properties, embedding FROM nodes WHERE id IN (
			SELECT target_id FROM edges WHERE source_id = ?
			UNION
			SELECT source_id FROM edges WHERE target_id = ?
		)`, string(id), string(id))
}

// ============================================================================
// Stats and Lifecycle
// ============================================================================

// NodeCount returns the total number of nodes.
func (s *SQLiteEngine) NodeCount() (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count)
	return count, err
}

// EdgeCount returns the total number of edges.
func (s *SQLiteEngine) EdgeCount() (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&count)
	return count, err
}

// Close closes the database connection. Idempotent.
func (s *SQLiteEngine) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// ============================================================================
// Raw SQL execution
// ============================================================================

// ExecuteSQL runs an arbitrary SQL query and returns the column names and
// all rows. BLOB values come back as strings. This is the execution half of
// the declarative query passthrough; the translation half lives elsewhere
// and engines other than SQLite do not offer it.
func (s *SQLiteEngine) ExecuteSQL(ctx context.Context, query string) ([]string, [][]any, error) {
	if s.closed {
		return nil, nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	results := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		results = append(results, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, results, nil
}

// ============================================================================
// Streaming
// ============================================================================

// StreamNodes implements StreamingEngine.
func (s *SQLiteEngine) StreamNodes(ctx context.Context, fn func(node *Node) error) error {
	if s.closed {
		return ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, properties, embedding FROM nodes")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		node, err := scanNode(rows)
		if err != nil {
			return err
		}
		if err := fn(node); err != nil {
			if err == ErrIterationStopped {
				return nil
			}
			return err
		}
	}
	return rows.Err()
}

// StreamEdges implements StreamingEngine.
func (s *SQLiteEngine) StreamEdges(ctx context.Context, fn func(edge *Edge) error) error {
	if s.closed {
		return ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, source_id, target_id, relation, weight FROM edges")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		edge, err := scanEdge(rows)
		if err != nil {
			return err
		}
		if err := fn(edge); err != nil {
			if err == ErrIterationStopped {
				return nil
			}
			return err
		}
	}
	return rows.Err()
}

// Verify interface conformance
var (
	_ Engine          = (*SQLiteEngine)(nil)
	_ StreamingEngine = (*SQLiteEngine)(nil)
)
