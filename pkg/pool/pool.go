// Package pool provides object pooling for the decode and persistence paths.
//
// Decoding a matrix result splits every serialized line into fields and
// parses them into a row of float64 values; persisting a result copies the
// serialization through byte buffers. These buffers are short-lived and have
// the same size for every row of a dataset, so they are reused instead of
// reallocated.
//
// Pooled objects:
// - Float64 slices (decoded rows)
// - String slices (tab-separated fields)
// - Byte buffers (file output)
//
// Usage:
//
//	row := pool.GetFloat64Slice()
//	defer pool.PutFloat64Slice(row)
//
//	row, err = dec.AppendRow(row, line)
package pool

import (
	"sync"
)

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active
	Enabled bool

	// MaxSize limits the capacity of slices kept in each pool
	MaxSize int
}

var globalConfig = PoolConfig{
	Enabled: true,
	MaxSize: 1 << 16,
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
	float64SlicePool = sync.Pool{
		New: func() any {
			return make([]float64, 0, 64)
		},
	}
	stringSlicePool = sync.Pool{
		New: func() any {
			return make([]string, 0, 64)
		},
	}
	byteBufferPool = sync.Pool{
		New: func() any {
			return make([]byte, 0, 4096)
		},
	}
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// =============================================================================
// Float64 Slice Pool (decoded rows)
// =============================================================================

var float64SlicePool = sync.Pool{
	New: func() any {
		return make([]float64, 0, 64)
	},
}

// GetFloat64Slice returns a float64 slice from the pool.
// The returned slice has length 0 but may have capacity.
// Call PutFloat64Slice when done.
func GetFloat64Slice() []float64 {
	if !globalConfig.Enabled {
		return make([]float64, 0, 64)
	}
	return float64SlicePool.Get().([]float64)[:0]
}

// PutFloat64Slice returns a float64 slice to the pool.
func PutFloat64Slice(s []float64) {
	if !globalConfig.Enabled || s == nil {
		return
	}
	// Don't pool very large slices (memory leak prevention)
	if cap(s) > globalConfig.MaxSize {
		return
	}
	float64SlicePool.Put(s[:0])
}

// =============================================================================
// String Slice Pool (serialized fields)
// =============================================================================

var stringSlicePool = sync.Pool{
	New: func() any {
		return make([]string, 0, 64)
	},
}

// GetStringSlice returns a string slice from the pool.
func GetStringSlice() []string {
	if !globalConfig.Enabled {
		return make([]string, 0, 64)
	}
	return stringSlicePool.Get().([]string)[:0]
}

// PutStringSlice returns a string slice to the pool.
// Entries are cleared so the pooled slice does not pin serialized text.
func PutStringSlice(s []string) {
	if !globalConfig.Enabled || s == nil {
		return
	}
	if cap(s) > globalConfig.MaxSize {
		return
	}
	clear(s)
	stringSlicePool.Put(s[:0])
}

// =============================================================================
// Byte Buffer Pool
// =============================================================================

var byteBufferPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

// GetByteBuffer returns a byte buffer from the pool.
func GetByteBuffer() []byte {
	if !globalConfig.Enabled {
		return make([]byte, 0, 4096)
	}
	return byteBufferPool.Get().([]byte)[:0]
}

// PutByteBuffer returns a byte buffer to the pool.
func PutByteBuffer(buf []byte) {
	if !globalConfig.Enabled || buf == nil {
		return
	}
	if cap(buf) > 1024*1024 { // Don't pool huge buffers (>1MB)
		return
	}
	byteBufferPool.Put(buf[:0])
}
