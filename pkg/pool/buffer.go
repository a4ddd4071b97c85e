// Package pool provides reusable copy buffers sized to the file being copied.
//
// Buffers are kept in one sync.Pool per power-of-two size class, so copying a
// tree of small files does not pin a large buffer per worker.
package pool

import (
	"fmt"
	"math/bits"
	"sync"
)

// BufferPool hands out byte slices from power-of-two size classes between
// a minimum and a maximum size.
type BufferPool struct {
	minExp int
	maxExp int
	pools  []sync.Pool
}

// NewBufferPool creates a pool whose size classes span minSize..maxSize.
// Both bounds are rounded up to the next power of two.
func NewBufferPool(minSize, maxSize int64) *BufferPool {
	if minSize <= 0 || maxSize <= 0 {
		panic(fmt.Sprintf("invalid buffer pool bounds %d..%d", minSize, maxSize))
	}
	minSize = NextPowerOfTwo(minSize)
	maxSize = NextPowerOfTwo(maxSize)
	if maxSize < minSize {
		maxSize = minSize
	}

	bp := &BufferPool{
		minExp: bits.TrailingZeros64(uint64(minSize)),
		maxExp: bits.TrailingZeros64(uint64(maxSize)),
	}
	bp.pools = make([]sync.Pool, bp.maxExp+1)
	for i := bp.minExp; i <= bp.maxExp; i++ {
		size := int64(1) << i
		bp.pools[i].New = func() any {
			b := make([]byte, int(size))
			return &b
		}
	}
	return bp
}

// MaxSize returns the largest buffer the pool hands out.
func (bp *BufferPool) MaxSize() int64 {
	return int64(1) << bp.maxExp
}

// ForFile returns a buffer suitable for copying a file of fileSize bytes: the
// smallest size class holding the whole file, capped at MaxSize. The returned
// slice is never empty, so it is always valid for io.CopyBuffer.
func (bp *BufferPool) ForFile(fileSize int64) *[]byte {
	if fileSize < 1 {
		fileSize = 1
	}
	if fileSize > bp.MaxSize() {
		fileSize = bp.MaxSize()
	}
	idx := bits.Len64(uint64(fileSize - 1))
	if idx < bp.minExp {
		idx = bp.minExp
	}
	bufPtr := bp.pools[idx].Get().(*[]byte)
	*bufPtr = (*bufPtr)[:cap(*bufPtr)]
	return bufPtr
}

// Put returns a buffer obtained from ForFile. Foreign slices are dropped.
func (bp *BufferPool) Put(bufPtr *[]byte) {
	if bufPtr == nil {
		return
	}
	capacity := int64(cap(*bufPtr))
	if capacity < int64(1)<<bp.minExp || capacity > bp.MaxSize() || !isPowerOfTwo(capacity) {
		return
	}
	*bufPtr = (*bufPtr)[:capacity]
	bp.pools[bits.TrailingZeros64(uint64(capacity))].Put(bufPtr)
}

// NextPowerOfTwo returns the smallest power of two >= n (n > 0).
func NextPowerOfTwo(n int64) int64 {
	if n <= 1 {
		return 1
	}
	return int64(1) << bits.Len64(uint64(n-1))
}

func isPowerOfTwo(n int64) bool {
	return n > 0 && (n&(n-1)) == 0
}
