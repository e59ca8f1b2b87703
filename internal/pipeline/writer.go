package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/draftxfer/draft/internal/queue"
	"github.com/draftxfer/draft/internal/stats"
)

// FileWriterAt is the subset of *os.File a Writer needs to place a block
// at its destination offset.
type FileWriterAt interface {
	WriteAt(p []byte, off int64) (int, error)
}

// Writer drains a write queue and places each block at (fileId, offset)
// in the file the fileId maps to (spec.md §4.8). With noDisk set, blocks
// are consumed without being written, for no-disk benchmarking runs.
type Writer struct {
	files  map[uint16]FileWriterAt
	in     *queue.Queue[BlockDescriptor]
	noDisk bool
}

// NewWriter constructs a Writer over a fileId -> file map.
func NewWriter(files map[uint16]FileWriterAt, in *queue.Queue[BlockDescriptor], noDisk bool) *Writer {
	return &Writer{files: files, in: in, noDisk: noDisk}
}

// Run drains in until cancellation or an unrecoverable write error.
func (w *Writer) Run(ctx context.Context) error {
	for {
		desc, ok := w.in.GetTimeout(acquireRetryInterval)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		err := w.write(desc)
		desc.Release()
		if err != nil {
			return err
		}
	}
}

func (w *Writer) write(desc BlockDescriptor) error {
	if w.noDisk {
		return nil
	}
	f, ok := w.files[desc.FileID]
	if !ok {
		return fmt.Errorf("pipeline: writer: no file open for fileId %d", desc.FileID)
	}
	payload := desc.Payload()
	off := int64(desc.Offset)
	for len(payload) > 0 {
		n, err := f.WriteAt(payload, off)
		if err != nil {
			return fmt.Errorf("pipeline: writer write at %d: %w", off, err)
		}
		if n == 0 {
			return fmt.Errorf("pipeline: writer: %w at offset %d", io.ErrShortWrite, off)
		}
		payload = payload[n:]
		off += int64(n)
	}
	stats.Global().FileByteCount.Add(uint64(desc.Length))
	return nil
}
