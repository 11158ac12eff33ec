// Package query provides declarative graph-query execution for MuninDB.
//
// The store does not interpret graph queries itself. This package translates
// a small declarative pattern dialect into SQL and forwards the SQL to a
// storage engine that can run it; the engine's raw result set is returned
// unchanged. Engines that cannot run SQL do not support this modality at
// all, which callers see as ErrNotSupported.
//
// Supported Pattern Subset:
//   - MATCH: a single linear pattern of nodes and directed relationships
//   - Node patterns: (alias), (alias:Label), (alias:Label {key: value, ...})
//   - Relationship patterns: [alias], [:LABEL], [alias:LABEL {weight: n}]
//   - RETURN: aliases (whole rows), alias.field projections
//
// Everything else (WHERE clauses, variable-length paths, reverse arrows,
// aggregation) is outside the subset and fails with ErrUnsupportedQuery
// rather than mistranslating.
//
// Example Usage:
//
//	translator := query.NewTranslator()
//
//	result, err := translator.Execute(ctx, engine,
//		`MATCH (n:Person {name: "George Washington", age: 57}) RETURN n`)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, row := range result.Rows {
//		fmt.Printf("Row: %v\n", row)
//	}
//
// Translation is deterministic, so repeated queries hit an LRU cache of
// translated SQL instead of re-parsing.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/orneryd/munindb/pkg/cache"
)

// Errors returned by query operations.
var (
	// ErrNotSupported is returned when the active storage engine cannot
	// execute SQL and therefore cannot serve declarative queries.
	ErrNotSupported = errors.New("storage engine does not support declarative queries")

	// ErrInvalidQuery is returned when the query is missing its MATCH or
	// RETURN clause.
	ErrInvalidQuery = errors.New("invalid query: missing MATCH or RETURN clause")

	// ErrUnsupportedQuery is returned for syntactically valid queries that
	// fall outside the supported pattern subset.
	ErrUnsupportedQuery = errors.New("query outside the supported pattern subset")
)

// Result holds the raw result set of an executed query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Executor is the capability a storage engine must expose to serve
// declarative queries. The SQL engine satisfies it; the in-memory and
// Badger engines do not.
type Executor interface {
	ExecuteSQL(ctx context.Context, query string) (columns []string, rows [][]any, err error)
}

// Translation cache defaults. Translation is pure, so entries never go
// semantically stale; the TTL only bounds memory for one-off queries.
const (
	defaultCacheSize = 1000
	defaultCacheTTL  = 5 * time.Minute
)

// Translator converts declarative pattern queries into SQL, memoizing
// translations through an LRU cache. Safe for concurrent use.
type Translator struct {
	cache *cache.QueryCache
}

// NewTranslator creates a Translator with default cache settings.
func NewTranslator() *Translator {
	return NewTranslatorSized(defaultCacheSize, defaultCacheTTL)
}

// NewTranslatorSized creates a Translator with an explicitly sized cache.
// Non-positive values fall back to the package defaults.
func NewTranslatorSized(size int, ttl time.Duration) *Translator {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Translator{
		cache: cache.NewQueryCache(size, ttl),
	}
}

// Translate converts a declarative query into SQL, serving repeated queries
// from the cache.
func (t *Translator) Translate(q string) (string, error) {
	key := t.cache.Key(q)
	if sql, ok := t.cache.Get(key); ok {
		return sql, nil
	}

	sql, err := Translate(q)
	if err != nil {
		return "", err
	}

	t.cache.Put(key, sql)
	return sql, nil
}

// Execute translates q and runs the resulting SQL on the executor,
// returning the raw result set.
func (t *Translator) Execute(ctx context.Context, ex Executor, q string) (*Result, error) {
	sql, err := t.Translate(q)
	if err != nil {
		return nil, err
	}

	columns, rows, err := ex.ExecuteSQL(ctx, sql)
	if err != nil {
		return nil, err
	}
	return &Result{Columns: columns, Rows: rows}, nil
}

// CacheStats reports hit/miss statistics for the translation cache.
func (t *Translator) CacheStats() cache.CacheStats {
	return t.cache.Stats()
}
