package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/draftxfer/draft/internal/bufpool"
	"github.com/draftxfer/draft/internal/queue"
	"github.com/draftxfer/draft/internal/stats"
	"github.com/draftxfer/draft/pkg/wire"
)

// deadlineListener is implemented by *net.TCPListener; Receiver uses it
// to poll the listener briefly so AwaitConnect stays responsive to
// cancellation (spec.md §4.7/§5).
type deadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// Receiver implements spec.md §4.7's per-bound-listener state machine
// (AwaitConnect, AwaitHeader, AwaitPayload) for one pre-bound listener.
// A bad-magic header closes the current connection and returns to
// AwaitConnect rather than retiring the task, per spec.md §4.7 and the
// original implementation's Receiver::readHeader, which resets its fd
// and continues rather than exiting runOnce's loop.
type Receiver struct {
	listener net.Listener
	pool     *bufpool.Pool
	out      *queue.Queue[BlockDescriptor]
	hashOut  *queue.Queue[BlockDescriptor] // optional; offered each block without blocking when set
}

// NewReceiver constructs a Receiver over listener. If hashOut is
// non-nil, every received block is handed to out (the Writer's queue)
// and offered to hashOut (a Hasher's queue) via a shared buffer; the
// offer does not block, and a block is left out of hashOut when that
// queue is full.
func NewReceiver(listener net.Listener, pool *bufpool.Pool, out, hashOut *queue.Queue[BlockDescriptor]) *Receiver {
	return &Receiver{listener: listener, pool: pool, out: out, hashOut: hashOut}
}

// Run accepts connections and drives each through the AwaitHeader/
// AwaitPayload loop until a clean EOF or ctx cancellation. A bad-magic
// header on one connection does not end Run; it closes that connection
// and waits for the next one.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := r.awaitConnect(ctx)
		if err != nil {
			return err
		}
		if conn == nil {
			return nil // cancelled before any peer connected
		}

		again, err := r.serve(ctx, conn)
		conn.Close()
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

// serve drives one accepted connection's AwaitHeader/AwaitPayload loop.
// It returns again=true when the caller should accept a fresh
// connection (a bad-magic header, per spec.md §4.7), and again=false on
// a clean EOF or cancellation.
func (r *Receiver) serve(ctx context.Context, conn net.Conn) (bool, error) {
	for {
		if ctx.Err() != nil {
			return false, nil
		}
		header, buf, n, err := r.awaitFrame(ctx, conn)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return false, nil
			}
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			if errors.Is(err, wire.ErrBadMagic) {
				return true, nil
			}
			return false, fmt.Errorf("pipeline: receiver await frame: %w", err)
		}
		stats.Global().NetByteCount.Add(uint64(wire.HeaderSize) + uint64(n))
		stats.Global().ChunksReceived.Add(1)
		if n == 0 {
			continue
		}
		r.dispatch(ctx, header, buf, n)
	}
}

func (r *Receiver) awaitConnect(ctx context.Context) (net.Conn, error) {
	dl, hasDeadline := r.listener.(deadlineListener)
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		if hasDeadline {
			dl.SetDeadline(time.Now().Add(acquireRetryInterval))
		}
		conn, err := r.listener.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return nil, fmt.Errorf("pipeline: receiver accept: %w", err)
		}
		return conn, nil
	}
}

// awaitFrame acquires a pool buffer and reads one ChunkHeader and its
// payload into it via wire.ReadFrameInto. Acquisition retries on a
// short deadline and rechecks ctx, so a Receiver stalled on an
// exhausted pool stays responsive to cancellation instead of blocking
// indefinitely (spec.md's "no stage may block indefinitely" invariant),
// matching Reader.Run's acquire loop.
func (r *Receiver) awaitFrame(ctx context.Context, conn net.Conn) (wire.ChunkHeader, bufpool.Buffer, int, error) {
	for {
		if ctx.Err() != nil {
			return wire.ChunkHeader{}, bufpool.Buffer{}, 0, ctx.Err()
		}
		buf, ok := r.pool.GetTimeout(acquireRetryInterval)
		if !ok {
			continue
		}

		header, n, err := wire.ReadFrameInto(conn, buf.Bytes())
		if err != nil {
			buf.Release()
			return header, bufpool.Buffer{}, 0, err
		}
		if n == 0 {
			buf.Release()
			return header, bufpool.Buffer{}, 0, nil
		}
		return header, buf, n, nil
	}
}

func (r *Receiver) dispatch(ctx context.Context, header wire.ChunkHeader, buf bufpool.Buffer, n int) {
	if r.hashOut == nil {
		r.enqueue(ctx, r.out, NewDescriptor(buf, header.FileID, header.FileOffset, n))
		return
	}
	shared := bufpool.NewShared(buf, 2)
	primary := BlockDescriptor{Buf: shared, FileID: header.FileID, Offset: header.FileOffset, Length: n}
	secondary := primary
	if r.hashOut.TryPut(secondary) != queue.PutOK {
		secondary.Release()
	}
	r.enqueue(ctx, r.out, primary)
}

func (r *Receiver) enqueue(ctx context.Context, q *queue.Queue[BlockDescriptor], desc BlockDescriptor) {
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
