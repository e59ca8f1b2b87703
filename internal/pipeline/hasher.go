package pipeline

import (
	"context"
	"fmt"

	"github.com/draftxfer/draft/internal/blockhash"
	"github.com/draftxfer/draft/internal/queue"
	"github.com/draftxfer/draft/internal/stats"
	"github.com/draftxfer/draft/pkg/journal"
)

// Hasher drains a hash queue, hashing each block's payload and
// recording (fileId, offset, len, hash) to j (spec.md §4.9).
type Hasher struct {
	j        *journal.Journal
	in       *queue.Queue[BlockDescriptor]
	finalize bool // drain the queue to completion on cancellation instead of exiting immediately
}

// NewHasher constructs a Hasher writing to j. If finalize is true, Run
// drains any remaining queued descriptors to completion once ctx is
// cancelled, instead of exiting immediately.
func NewHasher(j *journal.Journal, in *queue.Queue[BlockDescriptor], finalize bool) *Hasher {
	return &Hasher{j: j, in: in, finalize: finalize}
}

// Run drains in until cancellation (and, if finalize is set, until the
// queue is empty after cancellation too).
func (h *Hasher) Run(ctx context.Context) error {
	for {
		desc, ok := h.in.GetTimeout(acquireRetryInterval)
		if !ok {
			if ctx.Err() == nil {
				continue
			}
			if !h.finalize {
				return nil
			}
			desc, ok = h.in.TryGet()
			if !ok {
				return nil
			}
		}
		err := h.process(desc)
		desc.Release()
		if err != nil {
			return err
		}
	}
}

func (h *Hasher) process(desc BlockDescriptor) error {
	if desc.Length == 0 {
		return nil
	}
	hash := blockhash.Sum64(desc.Payload())
	if err := h.j.WriteHash(desc.FileID, desc.Offset, uint64(desc.Length), hash); err != nil {
		return fmt.Errorf("pipeline: hasher write hash: %w", err)
	}
	stats.Global().HashRecordsWritten.Add(1)
	return nil
}
