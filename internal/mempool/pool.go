// Package mempool provides size-classed sync.Pool buffers for the per-image
// hot paths (LBP codes, gradient planes, masks).
package mempool

import "sync"

// sizeClass rounds n up to the next multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

// slicePool is a set of sync.Pools keyed by size class.
type slicePool[T any] struct {
	pools sync.Map // key: size class (int), value: *sync.Pool
}

func (sp *slicePool[T]) pool(cls int) *sync.Pool {
	pAny, _ := sp.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return pAny.(*sync.Pool)
}

func (sp *slicePool[T]) get(n int) []T {
	cls := sizeClass(n)
	buf, ok := sp.pool(cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:n]
}

func (sp *slicePool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	// contents need not be zeroed; callers overwrite what they read
	sp.pool(sizeClass(cap(buf))).Put(buf[:cap(buf)]) //nolint:staticcheck
}

var (
	uint8Pool   slicePool[uint8]
	float64Pool slicePool[float64]
	int32Pool   slicePool[int32]
)

// GetUint8 returns a []uint8 of length n. Contents are unspecified.
func GetUint8(n int) []uint8 { return uint8Pool.get(n) }

// PutUint8 returns a buffer to the pool. It is safe to pass a nil slice.
func PutUint8(buf []uint8) { uint8Pool.put(buf) }

// GetFloat64 returns a []float64 of length n. Contents are unspecified.
func GetFloat64(n int) []float64 { return float64Pool.get(n) }

// PutFloat64 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat64(buf []float64) { float64Pool.put(buf) }

// GetInt32Zeroed returns a zeroed []int32 of length n.
func GetInt32Zeroed(n int) []int32 {
	buf := int32Pool.get(n)
	clear(buf)
	return buf
}

// PutInt32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt32(buf []int32) { int32Pool.put(buf) }
