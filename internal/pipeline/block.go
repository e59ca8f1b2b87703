// Package pipeline implements the per-connection stages spec.md §4.5–§4.9
// describes: Reader and Sender on the transmit side, Receiver, Writer and
// Hasher on the receive side. Stages communicate exclusively through
// internal/queue.Queue[BlockDescriptor]; sockets and files are owned by
// exactly one stage at a time.
package pipeline

import "github.com/draftxfer/draft/internal/bufpool"

// BlockDescriptor is the in-process message carrying one owned buffer
// and its destination (fileId, offset, len), per spec.md §3. Buf is
// either a pool Buffer wrapped by NewDescriptor (single consumer) or a *bufpool.Shared
// (the descriptor is about to be drained by two consumers, e.g. a
// Writer and a Hasher sharing one Receiver-produced block).
type BlockDescriptor struct {
	Buf    Releasable
	FileID uint16
	Offset uint64
	Length int
}

// Releasable is satisfied by both *bufpool.Buffer and *bufpool.Shared so a
// BlockDescriptor can carry either without the pipeline caring which.
type Releasable interface {
	Bytes() []byte
	Slice(n int) []byte
	Release()
}

// releasableBuffer adapts a value-typed bufpool.Buffer (whose Release
// has a pointer receiver) to the Releasable interface.
type releasableBuffer struct {
	buf bufpool.Buffer
}

func (r *releasableBuffer) Bytes() []byte      { return r.buf.Bytes() }
func (r *releasableBuffer) Slice(n int) []byte { return r.buf.Slice(n) }
func (r *releasableBuffer) Release()           { r.buf.Release() }

// NewDescriptor wraps a freshly acquired pool buffer for single-consumer
// use.
func NewDescriptor(buf bufpool.Buffer, fileID uint16, offset uint64, length int) BlockDescriptor {
	return BlockDescriptor{Buf: &releasableBuffer{buf: buf}, FileID: fileID, Offset: offset, Length: length}
}

// Payload returns the descriptor's logical payload bytes.
func (d BlockDescriptor) Payload() []byte {
	return d.Buf.Slice(d.Length)
}

// Release returns the descriptor's buffer (or one of its shares) to its
// pool. Safe to call exactly once per descriptor instance handed to a
// consumer.
func (d BlockDescriptor) Release() {
	d.Buf.Release()
}
