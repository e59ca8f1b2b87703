package journal

import (
	"errors"
	"fmt"
	"os"
)

// Invalid is the sentinel cursor position ("~0" in spec.md §4.4):
// dereferencing it yields no record.
const Invalid int64 = -1

// ErrRange is returned by Iterator.Deref when the underlying cursor is
// invalid. Cursor.HashRecord reports an invalid cursor with ok=false
// instead, and advancing past either end leaves the cursor invalid
// without an error. It is a programming error per spec.md §7
// (RangeError), not something callers retry.
var ErrRange = errors.New("journal: range error")

// Whence selects how Cursor.Seek interprets its count argument.
type Whence int

const (
	SeekSet Whence = iota
	SeekCurrent
	SeekEnd
)

// Cursor is a (journal file view, record index) pair. Each Cursor holds
// its own read-only *os.File so multiple cursors can coexist and advance
// independently (spec.md §4.4).
type Cursor struct {
	f             *os.File
	journalOffset uint64
	index         int64
}

// Close releases the cursor's file view.
func (c *Cursor) Close() error {
	return c.f.Close()
}

// recordCount derives the current record count from the cursor's own
// file view, so a cursor observes a monotonically growing journal as
// records are appended concurrently.
func (c *Cursor) recordCount() (int64, error) {
	info, err := c.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("journal: cursor stat: %w", err)
	}
	return (info.Size() - int64(c.journalOffset)) / RecordSize, nil
}

// Index returns the cursor's current record index, or Invalid.
func (c *Cursor) Index() int64 {
	return c.index
}

// Valid reports whether the cursor currently refers to a record.
func (c *Cursor) Valid() bool {
	return c.index != Invalid
}

// Seek moves the cursor by/to an index relative to whence, per spec.md
// §4.4:
//
//   - SeekSet: target = count; valid iff 0 <= count < recordCount.
//   - SeekEnd: target = recordCount - |count| for count < 0; count >= 0
//     is always invalid.
//   - SeekCurrent: target = current ± |count|; if current is invalid and
//     count < 0, treat as SeekEnd-relative.
//
// Any resulting target outside [0, recordCount) leaves the cursor
// invalid (not an error) and Seek returns it along with nil; it returns
// an error only for an unrecognized whence.
func (c *Cursor) Seek(count int64, whence Whence) (int64, error) {
	n, err := c.recordCount()
	if err != nil {
		return c.index, err
	}

	var target int64
	switch whence {
	case SeekSet:
		target = count
		if count < 0 || count >= n {
			c.index = Invalid
			return c.index, nil
		}
	case SeekEnd:
		if count >= 0 {
			c.index = Invalid
			return c.index, nil
		}
		target = n - absInt64(count)
	case SeekCurrent:
		if c.index == Invalid && count < 0 {
			target = n - absInt64(count)
		} else {
			target = c.index + count
		}
	default:
		return c.index, fmt.Errorf("journal: unknown whence %d", whence)
	}

	if target < 0 || target >= n {
		c.index = Invalid
		return c.index, nil
	}
	c.index = target
	return c.index, nil
}

// HashRecord returns the record at the cursor's current index, issuing
// a positioned read on the cursor's own file view. ok is false when the
// cursor is invalid.
func (c *Cursor) HashRecord() (HashRecord, bool, error) {
	if c.index == Invalid {
		return HashRecord{}, false, nil
	}
	buf := make([]byte, RecordSize)
	off := int64(c.journalOffset) + c.index*RecordSize
	if _, err := c.f.ReadAt(buf, off); err != nil {
		return HashRecord{}, false, fmt.Errorf("journal: read record at index %d: %w", c.index, err)
	}
	return DecodeRecord(buf), true, nil
}

// Equal reports whether two cursors reference the same position (not
// necessarily the same underlying file view).
func (c *Cursor) Equal(other *Cursor) bool {
	return c.index == other.index
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Iterator wraps a Cursor as a bidirectional iterator, per spec.md
// §4.4. It mutates the underlying cursor in place.
type Iterator struct {
	c *Cursor
}

// NewIterator wraps c as an Iterator.
func NewIterator(c *Cursor) *Iterator {
	return &Iterator{c: c}
}

// Deref returns the record at the iterator's current position, or
// ErrRange if the underlying cursor is invalid.
func (it *Iterator) Deref() (HashRecord, error) {
	rec, ok, err := it.c.HashRecord()
	if err != nil {
		return HashRecord{}, err
	}
	if !ok {
		return HashRecord{}, ErrRange
	}
	return rec, nil
}

// Add advances the iterator by delta records (delta may be negative),
// via SeekCurrent.
func (it *Iterator) Add(delta int64) (*Iterator, error) {
	if _, err := it.c.Seek(delta, SeekCurrent); err != nil {
		return it, err
	}
	return it, nil
}

// Equal reports whether two iterators reference the same position.
func (it *Iterator) Equal(other *Iterator) bool {
	return it.c.Equal(other.c)
}

// Cursor exposes the iterator's underlying cursor.
func (it *Iterator) Cursor() *Cursor {
	return it.c
}
