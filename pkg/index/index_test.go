package index

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/orneryd/munindb/pkg/math/vector"
)

func TestQueryBeforeBuild(t *testing.T) {
	ix := New(3, vector.Euclidean)

	_, err := ix.Query(context.Background(), []float32{0, 0, 0}, 1)
	if !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
	if ix.Built() {
		t.Error("index reports built before any Build call")
	}
}

func TestBuildValidatesDimensions(t *testing.T) {
	ix := New(2, vector.Euclidean)

	err := ix.Build([]Entry{
		{ID: "1", Vector: []float32{0, 0}},
		{ID: "2", Vector: []float32{1, 2, 3}},
	}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	// A failed build must not mark the index usable.
	if ix.Built() {
		t.Error("index reports built after failed Build")
	}
	if _, err := ix.Query(context.Background(), []float32{0, 0}, 1); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("expected ErrNotBuilt after failed Build, got %v", err)
	}
}

func TestQueryOrdering(t *testing.T) {
	ix := New(2, vector.Euclidean)

	entries := []Entry{
		{ID: "far", Vector: []float32{10, 10}},
		{ID: "mid", Vector: []float32{3, 4}},
		{ID: "near", Vector: []float32{1, 0}},
	}
	if err := ix.Build(entries, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := ix.Query(context.Background(), []float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	wantIDs := []string{"near", "mid", "far"}
	wantDist := []float64{1, 5, math.Sqrt(200)}
	for i, want := range wantIDs {
		if results[i].ID != want {
			t.Errorf("result %d: expected id %s, got %s", i, want, results[i].ID)
		}
		if math.Abs(results[i].Distance-wantDist[i]) > 1e-9 {
			t.Errorf("result %d: expected distance %v, got %v", i, wantDist[i], results[i].Distance)
		}
	}
}

func TestQueryTieBreak(t *testing.T) {
	ix := New(2, vector.Euclidean)

	// Four points all at distance 1 from the origin. Ranking must fall back
	// to id order, and "2" sorts before "10" because ids compare numerically.
	entries := []Entry{
		{ID: "10", Vector: []float32{0, 1}},
		{ID: "2", Vector: []float32{1, 0}},
		{ID: "30", Vector: []float32{0, -1}},
		{ID: "4", Vector: []float32{-1, 0}},
	}
	if err := ix.Build(entries, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := ix.Query(context.Background(), []float32{0, 0}, 4)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	want := []string{"2", "4", "10", "30"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("result %d: expected id %s, got %s", i, id, results[i].ID)
		}
	}
}

func TestQueryK(t *testing.T) {
	ix := New(1, vector.Euclidean)

	entries := []Entry{
		{ID: "1", Vector: []float32{1}},
		{ID: "2", Vector: []float32{2}},
		{ID: "3", Vector: []float32{3}},
	}
	if err := ix.Build(entries, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	t.Run("k larger than index returns all", func(t *testing.T) {
		results, err := ix.Query(context.Background(), []float32{0}, 10)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(results) != 3 {
			t.Errorf("expected 3 results, got %d", len(results))
		}
	})

	t.Run("k truncates", func(t *testing.T) {
		results, err := ix.Query(context.Background(), []float32{0}, 2)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if results[0].ID != "1" || results[1].ID != "2" {
			t.Errorf("expected ids [1 2], got [%s %s]", results[0].ID, results[1].ID)
		}
	})

	t.Run("k zero returns empty", func(t *testing.T) {
		results, err := ix.Query(context.Background(), []float32{0}, 0)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
	})

	t.Run("negative k returns empty", func(t *testing.T) {
		results, err := ix.Query(context.Background(), []float32{0}, -1)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
	})
}

func TestQueryDimensionMismatch(t *testing.T) {
	ix := New(3, vector.Euclidean)
	if err := ix.Build([]Entry{{ID: "1", Vector: []float32{1, 2, 3}}}, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	_, err := ix.Query(context.Background(), []float32{1, 2}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEmptyBuild(t *testing.T) {
	ix := New(2, vector.Euclidean)
	if err := ix.Build(nil, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := ix.Query(context.Background(), []float32{0, 0}, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from empty index, got %d", len(results))
	}
}

func TestGeneration(t *testing.T) {
	ix := New(1, vector.Euclidean)

	if got := ix.Generation(); got != 0 {
		t.Errorf("expected generation 0 before build, got %d", got)
	}

	if err := ix.Build([]Entry{{ID: "1", Vector: []float32{1}}}, 7); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := ix.Generation(); got != 7 {
		t.Errorf("expected generation 7, got %d", got)
	}
	if got := ix.Len(); got != 1 {
		t.Errorf("expected 1 entry, got %d", got)
	}
}

func TestRebuildReplacesContents(t *testing.T) {
	ix := New(1, vector.Euclidean)

	if err := ix.Build([]Entry{
		{ID: "old-1", Vector: []float32{1}},
		{ID: "old-2", Vector: []float32{2}},
	}, 1); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}

	if err := ix.Build([]Entry{{ID: "new", Vector: []float32{5}}}, 2); err != nil {
		t.Fatalf("second Build failed: %v", err)
	}

	results, err := ix.Query(context.Background(), []float32{0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "new" {
		t.Errorf("rebuild did not replace contents: %+v", results)
	}
	if got := ix.Generation(); got != 2 {
		t.Errorf("expected generation 2 after rebuild, got %d", got)
	}
}

func TestBuildCopiesEntries(t *testing.T) {
	ix := New(1, vector.Euclidean)

	entries := []Entry{
		{ID: "1", Vector: []float32{1}},
		{ID: "2", Vector: []float32{2}},
	}
	if err := ix.Build(entries, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Mutating the caller's slice must not disturb the index.
	entries[0] = Entry{ID: "mutated", Vector: []float32{99}}

	results, err := ix.Query(context.Background(), []float32{1}, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if results[0].ID != "1" {
		t.Errorf("index observed caller mutation: got id %s", results[0].ID)
	}
}

func TestQueryCancellation(t *testing.T) {
	ix := New(1, vector.Euclidean)

	entries := make([]Entry, 2048)
	for i := range entries {
		entries[i] = Entry{ID: string(rune('a' + i%26)), Vector: []float32{float32(i)}}
	}
	if err := ix.Build(entries, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.Query(ctx, []float32{0}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCosineMetric(t *testing.T) {
	ix := New(2, vector.Cosine)

	// "aligned" points the same way as the query, "ortho" is perpendicular,
	// "opposite" points the other way. Euclidean would rank these very
	// differently (aligned is the farthest point in L2).
	entries := []Entry{
		{ID: "opposite", Vector: []float32{-1, 0}},
		{ID: "aligned", Vector: []float32{100, 0}},
		{ID: "ortho", Vector: []float32{0, 1}},
	}
	if err := ix.Build(entries, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := ix.Query(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	want := []string{"aligned", "ortho", "opposite"}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("result %d: expected id %s, got %s", i, id, results[i].ID)
		}
	}
	if ix.Metric() != vector.Cosine {
		t.Errorf("expected cosine metric, got %v", ix.Metric())
	}
	if ix.Dims() != 2 {
		t.Errorf("expected 2 dims, got %d", ix.Dims())
	}
}
