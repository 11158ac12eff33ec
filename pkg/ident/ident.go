// Package ident allocates node and edge identifiers for MuninDB.
//
// A store picks one allocation strategy at construction and keeps it for
// its whole lifetime, because the strategy fixes the external shape of
// every identifier the store ever hands out: sequential stores expose
// decimal integer strings ("1", "2", ...), random stores expose UUID
// strings. Nodes and edges are independent entity sets, so a store holds
// one allocator per set.
//
// Allocators are not safe for concurrent use on their own; the store
// serializes all writers, and allocation only happens on the write path.
package ident

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
)

// Less reports whether id a sorts before id b.
//
// Ids that both parse as unsigned integers compare numerically, so a
// sequential store's "9" sorts before its "10"; everything else compares
// by byte order. This is the ordering behind every deterministic contract
// in the store: scan output, nearest-neighbor tie-breaks, and the
// lowest-edge-id rule for deleting one of several parallel edges.
func Less(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil && na != nb {
		return na < nb
	}
	// Byte order, which also settles numerically equal spellings ("042"
	// vs "42") so the ordering stays total.
	return a < b
}

// Strategy names an identifier allocation scheme.
type Strategy string

const (
	// StrategySequential issues monotonically increasing decimal integers,
	// seeded from the largest numeric id already in the store so a reopened
	// store never re-issues an id.
	StrategySequential Strategy = "sequential"
	// StrategyRandom issues UUIDv4 strings. The 122-bit space makes
	// collisions improbable; allocation still checks against existing ids
	// and retries, failing only after repeated collisions that in practice
	// indicate a broken entropy source.
	StrategyRandom Strategy = "random"
)

// ErrCapacityExhausted is returned when an allocator cannot mint a fresh
// identifier. Neither strategy is expected to hit it under normal
// operation.
var ErrCapacityExhausted = errors.New("identifier capacity exhausted")

// randomRetries bounds the random allocator's collision loop. Eight
// consecutive UUIDv4 collisions means the random source is broken, not
// that the store is full.
const randomRetries = 8

// Allocator mints unique identifiers for one entity set.
type Allocator interface {
	// Allocate returns an id not currently in use. exists reports whether
	// an id is already taken; it is consulted so minted ids never collide
	// with caller-supplied ones. A nil exists func skips the check.
	Allocate(exists func(id string) bool) (string, error)

	// Observe folds an already-present identifier into allocator state.
	// The store calls it for every record found at open (and for every
	// caller-supplied id it accepts) so restarts never re-issue an id.
	Observe(id string)

	// Strategy reports which scheme this allocator implements.
	Strategy() Strategy
}

// New returns an allocator for the given strategy. An empty strategy
// selects StrategyRandom, matching the store default.
func New(s Strategy) (Allocator, error) {
	switch s {
	case StrategySequential:
		return &sequential{}, nil
	case "", StrategyRandom:
		return &random{}, nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q", s)
	}
}

// sequential issues last+1, last+2, ... skipping over ids the caller
// already used explicitly.
type sequential struct {
	last uint64
}

func (s *sequential) Allocate(exists func(string) bool) (string, error) {
	for {
		if s.last == math.MaxUint64 {
			// Unreachable in practice: needs 2^64 allocations.
			return "", fmt.Errorf("sequential space: %w", ErrCapacityExhausted)
		}
		s.last++
		id := strconv.FormatUint(s.last, 10)
		if exists == nil || !exists(id) {
			return id, nil
		}
	}
}

// Observe advances the counter past any numeric id seen in the store.
// Non-numeric ids (possible when a caller supplies its own strings) are
// ignored; they can never collide with minted decimal ids that Allocate
// checks against exists anyway.
func (s *sequential) Observe(id string) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return
	}
	if n > s.last {
		s.last = n
	}
}

func (s *sequential) Strategy() Strategy { return StrategySequential }

type random struct{}

func (r *random) Allocate(exists func(string) bool) (string, error) {
	for i := 0; i < randomRetries; i++ {
		id := uuid.NewString()
		if exists == nil || !exists(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%d consecutive uuid collisions: %w", randomRetries, ErrCapacityExhausted)
}

func (r *random) Observe(string) {}

func (r *random) Strategy() Strategy { return StrategyRandom }
