package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/draftxfer/draft/internal/bufpool"
	"github.com/draftxfer/draft/internal/queue"
)

// acquireRetryInterval bounds how long Reader/Receiver/Sender wait on a
// single blocking primitive before re-checking for cancellation, per
// spec.md §5's "deadline-bounded or responsive to cancellation" rule.
const acquireRetryInterval = 100 * time.Millisecond

// Segment is a (offset, length) sub-range of a file assigned to one
// Reader.
type Segment struct {
	Offset int64
	Length int64
}

// Reader drains one open file into block-aligned buffers and enqueues
// them on out (spec.md §4.5). If hashOut is non-nil, every descriptor is
// also offered there on a best-effort, non-blocking basis; Reader never
// waits on hashOut.
type Reader struct {
	file    io.ReaderAt
	fileID  uint16
	pool    *bufpool.Pool
	out     *queue.Queue[BlockDescriptor]
	hashOut *queue.Queue[BlockDescriptor]

	cursor    int64
	remaining int64
}

// NewReader constructs a Reader over file for the given segment.
func NewReader(file io.ReaderAt, fileID uint16, segment Segment, pool *bufpool.Pool, out *queue.Queue[BlockDescriptor], hashOut *queue.Queue[BlockDescriptor]) *Reader {
	return &Reader{
		file:      file,
		fileID:    fileID,
		pool:      pool,
		out:       out,
		hashOut:   hashOut,
		cursor:    segment.Offset,
		remaining: segment.Length,
	}
}

// Run drives the reader to completion: the segment is exhausted, a short
// (zero-byte) read is observed, a read error occurs, or ctx is
// cancelled. A cancellation is not an error; Run returns nil.
func (r *Reader) Run(ctx context.Context) error {
	for r.remaining > 0 {
		if ctx.Err() != nil {
			return nil
		}

		buf, ok := r.pool.GetTimeout(acquireRetryInterval)
		if !ok {
			continue
		}

		want := int64(len(buf.Bytes()))
		if want > r.remaining {
			want = r.remaining
		}
		dst := buf.Slice(int(want))
		n, err := r.file.ReadAt(dst, r.cursor)
		if err != nil && err != io.EOF {
			buf.Release()
			return fmt.Errorf("pipeline: reader read at offset %d: %w", r.cursor, err)
		}
		if n == 0 {
			buf.Release()
			return nil
		}

		offset := uint64(r.cursor)
		r.cursor += int64(n)
		r.remaining -= int64(n)

		if r.hashOut == nil {
			r.enqueue(ctx, r.out, NewDescriptor(buf, r.fileID, offset, n))
			continue
		}

		// Two independent consumers will read this block; share the
		// underlying buffer so it returns to the pool only once both
		// have released their half (spec.md §4.9's design note).
		shared := bufpool.NewShared(buf, 2)
		primary := BlockDescriptor{Buf: shared, FileID: r.fileID, Offset: offset, Length: n}
		secondary := primary
		if r.hashOut.TryPut(secondary) != queue.PutOK {
			secondary.Release()
		}
		r.enqueue(ctx, r.out, primary)
	}
	return nil
}

// enqueue retries a blocking put on q until it succeeds or ctx is
// cancelled, in which case it releases desc itself.
func (r *Reader) enqueue(ctx context.Context, q *queue.Queue[BlockDescriptor], desc BlockDescriptor) {
	for {
		if ctx.Err() != nil {
			desc.Release()
			return
		}
		switch q.Put(desc, acquireRetryInterval) {
		case queue.PutOK:
			return
		case queue.PutCancelled:
			desc.Release()
			return
		case queue.PutFull, queue.PutTimedOut:
			continue
		}
	}
}
