// Package stats holds the process-wide atomic counters spec.md §5
// calls for: "a set of atomic counters initialized once per process...
// no global mutable state other than these counters."
package stats

import "sync/atomic"

// Counters is a set of process-wide byte/chunk counters updated from
// pipeline stages on both the tx and rx sides.
type Counters struct {
	NetByteCount       atomic.Uint64
	FileByteCount      atomic.Uint64
	ChunksSent         atomic.Uint64
	ChunksReceived     atomic.Uint64
	HashRecordsWritten atomic.Uint64
}

var global Counters

// Global returns the process-wide Counters instance.
func Global() *Counters {
	return &global
}

// Snapshot is a point-in-time copy of Counters, safe to log or print
// without racing further updates.
type Snapshot struct {
	NetByteCount       uint64
	FileByteCount      uint64
	ChunksSent         uint64
	ChunksReceived     uint64
	HashRecordsWritten uint64
}

// Snapshot reads every counter in c.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		NetByteCount:       c.NetByteCount.Load(),
		FileByteCount:      c.FileByteCount.Load(),
		ChunksSent:         c.ChunksSent.Load(),
		ChunksReceived:     c.ChunksReceived.Load(),
		HashRecordsWritten: c.HashRecordsWritten.Load(),
	}
}
