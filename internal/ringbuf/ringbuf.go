// Package ringbuf provides a lock-free, single-producer single-consumer (SPSC)
// ring buffer of live stream candles. The ticker loop produces and the
// publish loop consumes, so a slow publisher never stalls candle generation.
package ringbuf

import (
	"sync/atomic"

	"tradesim-engine/internal/model"
)

// cacheLine is the typical x86-64 cache line size used for padding.
const cacheLine = 64

// Ring is a lock-free SPSC ring buffer for StreamCandle values.
// Size is a power of two for fast bitwise modulo.
type Ring struct {
	buf  []model.StreamCandle
	mask uint64

	// Separate cache lines to prevent false sharing between producer and consumer.
	_pad0 [cacheLine]byte
	head  atomic.Uint64 // written by producer
	_pad1 [cacheLine]byte
	tail  atomic.Uint64 // written by consumer
	_pad2 [cacheLine]byte

	overflow atomic.Uint64
}

// New creates a ring buffer. capacity is rounded up to the next power of two.
// Minimum capacity is 2.
func New(capacity int) *Ring {
	size := nextPow2(capacity)
	if size < 2 {
		size = 2
	}
	return &Ring{
		buf:  make([]model.StreamCandle, size),
		mask: uint64(size - 1),
	}
}

// Push appends c. Returns false (and counts an overflow) if the buffer is
// full; c is not written in that case. Producer side only.
func (r *Ring) Push(c model.StreamCandle) bool {
	head := r.head.Load()
	tail := r.tail.Load()

	if head-tail >= uint64(len(r.buf)) {
		r.overflow.Add(1)
		return false
	}

	r.buf[head&r.mask] = c
	r.head.Store(head + 1)
	return true
}

// Pop retrieves the oldest candle. Returns false if the buffer is empty.
// Consumer side only.
func (r *Ring) Pop() (model.StreamCandle, bool) {
	tail := r.tail.Load()
	head := r.head.Load()

	if tail >= head {
		return model.StreamCandle{}, false
	}

	c := r.buf[tail&r.mask]
	r.buf[tail&r.mask] = model.StreamCandle{}
	r.tail.Store(tail + 1)
	return c, true
}

// Drain pops every available candle into fn and returns how many it saw.
// Consumer side only.
func (r *Ring) Drain(fn func(model.StreamCandle)) int {
	n := 0
	for {
		c, ok := r.Pop()
		if !ok {
			return n
		}
		fn(c)
		n++
	}
}

// Len returns the current number of items in the buffer.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the buffer capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Overflow returns the total number of dropped pushes due to full buffer.
func (r *Ring) Overflow() uint64 {
	return r.overflow.Load()
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
