// Package bufpool provides a fixed-size, pre-allocated slab of equal-size
// buffers handed out as owning handles that return themselves to the pool
// on Release.
package bufpool

import (
	"sync"
	"time"
)

// Pool is a slab of blockCount buffers of blockSize bytes each. Buffers are
// handed out via Get and must be returned via Buffer.Release; unlike a
// sync.Pool, Pool has bounded capacity and Get blocks (or times out) when
// the slab is exhausted.
type Pool struct {
	blockSize int
	slab      []byte

	mu       sync.Mutex
	cond     *sync.Cond
	free     []int // indices of unused blocks, treated as a stack
	cancelled bool
}

// New creates a pool backing blockCount buffers of exactly blockSize bytes.
// Panics if blockSize or blockCount is non-positive, matching the teacher's
// panic-on-misuse convention in the buffer pool constructor.
func New(blockSize, blockCount int) *Pool {
	if blockSize <= 0 {
		panic("bufpool: blockSize must be positive")
	}
	if blockCount <= 0 {
		panic("bufpool: blockCount must be positive")
	}
	p := &Pool{
		blockSize: blockSize,
		slab:      make([]byte, blockSize*blockCount),
		free:      make([]int, blockCount),
	}
	for i := range p.free {
		p.free[i] = i
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// BlockSize returns the size of buffers handed out by this pool.
func (p *Pool) BlockSize() int {
	return p.blockSize
}

// BlockCount returns the pool's total capacity.
func (p *Pool) BlockCount() int {
	return len(p.slab) / p.blockSize
}

// Get blocks until a free block is available and returns an owning handle
// to it. Returns ok=false if the pool has been cancelled while waiting.
func (p *Pool) Get() (Buffer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.free) == 0 && !p.cancelled {
		p.cond.Wait()
	}
	if p.cancelled {
		return Buffer{}, false
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return Buffer{pool: p, index: idx, length: p.blockSize}, true
}

// GetTimeout is Get bounded by a deadline. Returns ok=false on timeout or
// cancellation. Deadlines are expected to be short (spec.md suggests
// <=100ms) so that cancellation stays responsive.
func (p *Pool) GetTimeout(deadline time.Duration) (Buffer, bool) {
	result := make(chan Buffer, 1)
	go func() {
		buf, ok := p.Get()
		if ok {
			result <- buf
		}
		close(result)
	}()
	select {
	case buf, ok := <-result:
		return buf, ok
	case <-time.After(deadline):
		// The Get above may still complete later and acquire a block; since
		// the caller gave up, release it back to the free list once it
		// lands so it is not stranded.
		go func() {
			if buf, ok := <-result; ok {
				buf.Release()
			}
		}()
		return Buffer{}, false
	}
}

// Cancel wakes every blocked Get/GetTimeout caller with ok=false. Safe to
// call multiple times. Cancellation does not reclaim outstanding buffers;
// they still return their index to the free list on Release.
func (p *Pool) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *Pool) put(index int) {
	p.mu.Lock()
	p.free = append(p.free, index)
	p.mu.Unlock()
	p.cond.Signal()
}

// Buffer is an exclusive, move-only handle to one slab-resident block.
// Copying a Buffer value does not duplicate ownership; callers must treat
// it as move-only and call Release exactly once.
type Buffer struct {
	pool    *Pool
	index   int
	length  int
	released bool
}

// Valid reports whether the handle refers to a real block (false for the
// zero value returned by a failed/timed-out/cancelled Get).
func (b Buffer) Valid() bool {
	return b.pool != nil
}

// Bytes returns the full-capacity slice backing this block.
func (b Buffer) Bytes() []byte {
	if b.pool == nil {
		return nil
	}
	start := b.index * b.pool.blockSize
	return b.pool.slab[start : start+b.pool.blockSize]
}

// Slice returns the first n bytes of the block, for a logical length
// shorter than the physical block size (e.g. the last short read of a
// file).
func (b Buffer) Slice(n int) []byte {
	full := b.Bytes()
	if n < 0 {
		n = 0
	}
	if n > len(full) {
		n = len(full)
	}
	return full[:n]
}

// Index returns the block's slab index, mostly useful for tests that want
// to assert pool conservation.
func (b Buffer) Index() int {
	return b.index
}

// Release returns the block to its pool's free list and wakes one waiter.
// Release is idempotent; calling it more than once is a no-op after the
// first call.
func (b *Buffer) Release() {
	if b.pool == nil || b.released {
		return
	}
	b.released = true
	b.pool.put(b.index)
}
