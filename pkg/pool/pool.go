// Package pool provides object pooling for MuninDB to reduce allocations.
//
// Object pooling reuses allocated objects instead of creating new ones,
// reducing GC pressure on the store's hot paths.
//
// Pooled objects:
// - Index entry slices (vector index rebuilds)
// - Byte buffers (embedding encode scratch)
// - String slices (edge id collection during cascades)
//
// Usage:
//
//	// Get a buffer from the pool
//	buf := pool.GetByteBuffer()
//	defer pool.PutByteBuffer(buf)
//
//	// Use the buffer...
//	buf = append(buf, data...)
package pool

import (
	"sync"

	"github.com/orneryd/munindb/pkg/index"
)

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active
	Enabled bool

	// MaxSize limits maximum slice capacity kept in each pool
	MaxSize int
}

var globalConfig = PoolConfig{
	Enabled: true,
	MaxSize: 100000,
}

// Configure sets global pool configuration.
// Should be called early during initialization.
func Configure(config PoolConfig) {
	globalConfig = config

	// Reinitialize pools to ensure New functions are set correctly
	initPools()
}

// initPools reinitializes all pools with their New functions.
func initPools() {
	entrySlicePool = sync.Pool{
		New: func() any {
			return make([]index.Entry, 0, 64)
		},
	}
	byteBufferPool = sync.Pool{
		New: func() any {
			return make([]byte, 0, 1024)
		},
	}
	stringSlicePool = sync.Pool{
		New: func() any {
			return make([]string, 0, 16)
		},
	}
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// =============================================================================
// Index Entry Slice Pool (for vector index rebuilds)
// =============================================================================

var entrySlicePool = sync.Pool{
	New: func() any {
		return make([]index.Entry, 0, 64)
	},
}

// GetEntrySlice returns an index entry slice from the pool.
// The returned slice has length 0 but may have capacity.
// Call PutEntrySlice when done.
func GetEntrySlice() []index.Entry {
	if !globalConfig.Enabled {
		return make([]index.Entry, 0, 64)
	}
	return entrySlicePool.Get().([]index.Entry)[:0]
}

// PutEntrySlice returns an entry slice to the pool.
// Entries are cleared so pooled slices do not pin embeddings.
func PutEntrySlice(entries []index.Entry) {
	if !globalConfig.Enabled {
		return
	}
	// Don't pool very large slices (memory leak prevention)
	if cap(entries) > globalConfig.MaxSize {
		return
	}
	for i := range entries {
		entries[i] = index.Entry{}
	}
	entrySlicePool.Put(entries[:0])
}

// =============================================================================
// Byte Buffer Pool (embedding encode scratch)
// =============================================================================

var byteBufferPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 1024)
	},
}

// GetByteBuffer returns a byte buffer from the pool.
func GetByteBuffer() []byte {
	if !globalConfig.Enabled {
		return make([]byte, 0, 1024)
	}
	return byteBufferPool.Get().([]byte)[:0]
}

// PutByteBuffer returns a byte buffer to the pool.
func PutByteBuffer(buf []byte) {
	if !globalConfig.Enabled {
		return
	}
	if cap(buf) > 1024*1024 { // Don't pool huge buffers (>1MB)
		return
	}
	byteBufferPool.Put(buf[:0])
}

// =============================================================================
// String Slice Pool (edge id scratch during cascades)
// =============================================================================

var stringSlicePool = sync.Pool{
	New: func() any {
		return make([]string, 0, 16)
	},
}

// GetStringSlice returns a string slice from the pool.
func GetStringSlice() []string {
	if !globalConfig.Enabled {
		return make([]string, 0, 16)
	}
	return stringSlicePool.Get().([]string)[:0]
}

// PutStringSlice returns a string slice to the pool.
func PutStringSlice(s []string) {
	if !globalConfig.Enabled {
		return
	}
	if cap(s) > globalConfig.MaxSize {
		return
	}
	for i := range s {
		s[i] = ""
	}
	stringSlicePool.Put(s[:0])
}
