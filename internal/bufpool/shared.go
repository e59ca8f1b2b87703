package bufpool

import "sync/atomic"

// Shared wraps a Buffer so a single BlockDescriptor can fan out to more
// than one consumer (a Writer and a Hasher draining the same descriptor,
// per spec.md §4.9's design note on dual-destination descriptors). The
// underlying Buffer returns to its pool only once every share has called
// Release; a plain Buffer is move-only and cannot express that without
// this reference count.
type Shared struct {
	buf   Buffer
	count atomic.Int32
}

// NewShared wraps buf for sharing across n independent consumers. Each
// consumer must call Release exactly once.
func NewShared(buf Buffer, n int) *Shared {
	s := &Shared{buf: buf}
	s.count.Store(int32(n))
	return s
}

// Bytes returns the full-capacity slice backing the wrapped block.
func (s *Shared) Bytes() []byte {
	return s.buf.Bytes()
}

// Slice returns the first n bytes of the wrapped block.
func (s *Shared) Slice(n int) []byte {
	return s.buf.Slice(n)
}

// Release decrements the share count; the wrapped Buffer returns to its
// pool when the count reaches zero. Calling Release more times than the
// share count passed to NewShared is a programming error and is ignored
// past zero.
func (s *Shared) Release() {
	if s.count.Add(-1) == 0 {
		s.buf.Release()
	}
}
