package pipeline

import (
	"context"
	"fmt"
	"net"

	"github.com/draftxfer/draft/internal/blockhash"
	"github.com/draftxfer/draft/internal/queue"
	"github.com/draftxfer/draft/internal/stats"
	"github.com/draftxfer/draft/pkg/journal"
	"github.com/draftxfer/draft/pkg/wire"
)

// Sender drains a queue of BlockDescriptors and writes each as a
// (ChunkHeader, payload) frame to conn (spec.md §4.6). If j is non-nil,
// Sender hashes every payload itself before returning the buffer, rather
// than relying on a separate Hasher stage.
type Sender struct {
	conn net.Conn
	in   *queue.Queue[BlockDescriptor]
	j    *journal.Journal
}

// NewSender constructs a Sender writing to conn, optionally recording a
// hash of every block it sends into j.
func NewSender(conn net.Conn, in *queue.Queue[BlockDescriptor], j *journal.Journal) *Sender {
	return &Sender{conn: conn, in: in, j: j}
}

// Run drains in until cancellation, returning the first I/O error
// encountered. A cancelled queue with no pending error is not itself an
// error; Run returns nil.
func (s *Sender) Run(ctx context.Context) error {
	for {
		desc, ok := s.in.GetTimeout(acquireRetryInterval)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		err := s.send(desc)
		desc.Release()
		if err != nil {
			return err
		}
	}
}

func (s *Sender) send(desc BlockDescriptor) error {
	payload := desc.Payload()
	header := wire.NewChunkHeader(desc.FileID, desc.Offset, uint64(len(payload)), 0)
	if err := wire.WriteFrame(s.conn, header, payload); err != nil {
		return fmt.Errorf("pipeline: sender write frame: %w", err)
	}
	stats.Global().NetByteCount.Add(uint64(wire.HeaderSize + len(payload)))
	stats.Global().ChunksSent.Add(1)

	if s.j != nil {
		hash := blockhash.Sum64(payload)
		if err := s.j.WriteHash(desc.FileID, desc.Offset, uint64(len(payload)), hash); err != nil {
			return fmt.Errorf("pipeline: sender write hash: %w", err)
		}
		stats.Global().HashRecordsWritten.Add(1)
	}
	return nil
}
