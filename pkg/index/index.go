// Package index provides the exact nearest-neighbor vector index for MuninDB.
//
// The index is a flat, read-optimized copy of every (id, embedding) pair in
// the store. A query computes the distance from the query vector to every
// indexed vector, so results are exact: the true k nearest neighbors, every
// time, with no recall parameter to tune.
//
// Search Characteristics:
//   - Time: O(n * d) per query (n = indexed vectors, d = dimensions)
//   - Space: O(n * d) for the flat copy
//   - Recall: 100% (exhaustive scan, no approximation)
//   - Ordering: ascending distance, ties broken by id
//
// When to Use:
//   - Small-to-medium collections (up to a few hundred thousand vectors)
//   - Workloads where exactness matters more than latency
//   - Moderate dimensionality (tens to a few thousand dimensions)
//
// Large collections with strict latency budgets want an approximate
// structure instead; this store trades that for exactness and zero tuning.
//
// Staleness:
//
// An index is built against one moment of store state, identified by a
// generation number the store hands to Build. Writes after that moment are
// invisible to the index until the next Build. The index records the
// generation so the store can tell a fresh index from a stale one; it never
// refuses to answer just because it is stale.
//
// ELI12 (Explain Like I'm 12):
//
// Imagine checking which of your friends lives closest to you. The honest
// way is to measure the distance to every single friend's house and keep
// the shortest ones. That is exactly what this index does, every time you
// ask. It is never wrong, but if you make a LOT of friends it starts taking
// a while, and friends who moved house since you last wrote the list down
// (a rebuild) are measured at their old address.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/orneryd/munindb/pkg/ident"
	"github.com/orneryd/munindb/pkg/math/vector"
)

// Errors returned by index operations.
var (
	// ErrNotBuilt is returned by Query before the first successful Build.
	ErrNotBuilt = errors.New("vector index not built")

	// ErrDimensionMismatch is returned when a vector's length does not
	// match the index dimensionality fixed at construction.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// SearchResult is one nearest-neighbor hit.
type SearchResult struct {
	ID       string
	Distance float64
}

// Entry is one (id, embedding) pair handed to Build.
type Entry struct {
	ID     string
	Vector []float32
}

// checkEvery is how many distance computations happen between context
// cancellation checks during a query scan.
const checkEvery = 256

// VectorIndex is an exact nearest-neighbor index over fixed-length vectors.
//
// The dimensionality and distance metric are fixed at construction and
// never change for the index's lifetime; every built entry and every query
// vector must match the dimensionality.
//
// Thread Safety:
//
//	Safe for concurrent use. Build takes the write lock; queries share the
//	read lock.
type VectorIndex struct {
	mu sync.RWMutex

	dims   int
	metric vector.Metric

	entries    []Entry
	generation uint64
	built      bool
}

// New creates an empty index for vectors of the given length, measured with
// the given metric. The index answers no queries until Build has run.
func New(dims int, metric vector.Metric) *VectorIndex {
	return &VectorIndex{
		dims:   dims,
		metric: metric,
	}
}

// Build replaces the index contents with the given entries and records the
// store generation they reflect.
//
// Every entry is validated before the swap; a single wrong-length vector
// fails the whole build and leaves the previous contents (if any) serving.
func (ix *VectorIndex) Build(entries []Entry, generation uint64) error {
	for _, e := range entries {
		if len(e.Vector) != ix.dims {
			return fmt.Errorf("entry %s has %d dimensions, index has %d: %w",
				e.ID, len(e.Vector), ix.dims, ErrDimensionMismatch)
		}
	}

	snapshot := make([]Entry, len(entries))
	copy(snapshot, entries)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.entries = snapshot
	ix.generation = generation
	ix.built = true
	return nil
}

// Query returns the k indexed vectors nearest to query, in ascending
// distance order. Exact ties in distance are ordered by id (ident.Less), so
// the same query against the same build always returns the same ranking.
//
// Fewer than k results come back when the index holds fewer than k entries.
// k <= 0 returns an empty result. The scan honors ctx cancellation.
func (ix *VectorIndex) Query(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.built {
		return nil, ErrNotBuilt
	}
	if len(query) != ix.dims {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w",
			len(query), ix.dims, ErrDimensionMismatch)
	}

	if k <= 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(ix.entries))
	for i, e := range ix.entries {
		if i%checkEvery == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		results = append(results, SearchResult{
			ID:       e.ID,
			Distance: ix.metric.Distance(query, e.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return ident.Less(results[i].ID, results[j].ID)
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Built reports whether Build has ever succeeded.
func (ix *VectorIndex) Built() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.built
}

// Generation returns the store generation the current contents reflect.
// Zero until the first Build.
func (ix *VectorIndex) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.generation
}

// Len returns the number of indexed vectors.
func (ix *VectorIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Dims returns the vector length fixed at construction.
func (ix *VectorIndex) Dims() int {
	return ix.dims
}

// Metric returns the distance metric fixed at construction.
func (ix *VectorIndex) Metric() vector.Metric {
	return ix.metric
}
