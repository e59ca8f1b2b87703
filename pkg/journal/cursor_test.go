package journal

import (
	"path/filepath"
	"testing"
)

func journalWithRecords(t *testing.T, n int) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cursor.draftjournal")
	j, err := Create(path, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < n; i++ {
		r := HashRecord{Hash: uint64(i) + 1, Offset: uint64(i) * 4096, Size: 4096, FileID: 1}
		if err := j.WriteRecord(r); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	return j
}

func TestCursor_EmptyJournalIsAlwaysInvalid(t *testing.T) {
	j := journalWithRecords(t, 0)
	defer j.Close()

	b, err := j.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer b.Close()
	if b.Valid() {
		t.Fatalf("begin() of empty journal should be invalid")
	}

	e, err := j.End()
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	defer e.Close()
	if e.Valid() {
		t.Fatalf("end() should always be invalid")
	}
}

func TestCursor_BeginEndBidirectionality(t *testing.T) {
	const n = 5
	j := journalWithRecords(t, n)
	defer j.Close()

	begin, err := j.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer begin.Close()
	if !begin.Valid() || begin.Index() != 0 {
		t.Fatalf("begin() index = %d, want 0", begin.Index())
	}

	end, err := j.End()
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	defer end.Close()

	// end() - n == begin()
	if _, err := end.Seek(-int64(n), SeekCurrent); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if !end.Equal(begin) {
		t.Fatalf("end()-%d index = %d, want %d", n, end.Index(), begin.Index())
	}

	// begin() + n == end() (invalid, one past the last record)
	fwd, err := j.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer fwd.Close()
	if _, err := fwd.Seek(int64(n-1), SeekCurrent); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := fwd.Seek(1, SeekCurrent); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if fwd.Valid() {
		t.Fatalf("begin()+%d should be invalid (one past last record)", n)
	}
}

func TestCursor_ForwardBackwardSymmetry(t *testing.T) {
	const n = 8
	j := journalWithRecords(t, n)
	defer j.Close()

	c, err := j.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer c.Close()

	var forward []int64
	for c.Valid() {
		forward = append(forward, c.Index())
		if _, err := c.Seek(1, SeekCurrent); err != nil {
			t.Fatalf("Seek: %v", err)
		}
	}
	if len(forward) != n {
		t.Fatalf("walked %d records, want %d", len(forward), n)
	}

	// Step back onto the last valid record and walk backward.
	if _, err := c.Seek(-1, SeekCurrent); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	var backward []int64
	for c.Valid() {
		backward = append(backward, c.Index())
		if _, err := c.Seek(-1, SeekCurrent); err != nil {
			t.Fatalf("Seek: %v", err)
		}
	}
	if len(backward) != n {
		t.Fatalf("walked back %d records, want %d", len(backward), n)
	}
	for i := range forward {
		if forward[i] != backward[n-1-i] {
			t.Fatalf("forward/backward asymmetry at %d: %d vs %d", i, forward[i], backward[n-1-i])
		}
	}
}

func TestCursor_SeekOutOfRange(t *testing.T) {
	j := journalWithRecords(t, 3)
	defer j.Close()

	c, err := j.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	defer c.Close()

	if idx, err := c.Seek(10, SeekSet); err != nil || idx != Invalid {
		t.Fatalf("Seek(10, SeekSet) = (%d, %v), want (Invalid, nil)", idx, err)
	}
	if idx, err := c.Seek(-1, SeekSet); err != nil || idx != Invalid {
		t.Fatalf("Seek(-1, SeekSet) = (%d, %v), want (Invalid, nil)", idx, err)
	}
	if idx, err := c.Seek(0, SeekEnd); err != nil || idx != Invalid {
		t.Fatalf("Seek(0, SeekEnd) = (%d, %v), want (Invalid, nil)", idx, err)
	}

	rec, ok, err := c.HashRecord()
	if err != nil {
		t.Fatalf("HashRecord: %v", err)
	}
	if ok {
		t.Fatalf("HashRecord on invalid cursor returned ok=true, rec=%+v", rec)
	}

	it := NewIterator(c)
	if _, err := it.Deref(); err != ErrRange {
		t.Fatalf("Deref on invalid iterator = %v, want ErrRange", err)
	}
}

func TestCursor_SeekEndNegativeOffsets(t *testing.T) {
	j := journalWithRecords(t, 4)
	defer j.Close()

	c, err := j.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	defer c.Close()

	if idx, err := c.Seek(-1, SeekEnd); err != nil || idx != 3 {
		t.Fatalf("Seek(-1, SeekEnd) = (%d, %v), want (3, nil)", idx, err)
	}
	if idx, err := c.Seek(-4, SeekEnd); err != nil || idx != 0 {
		t.Fatalf("Seek(-4, SeekEnd) = (%d, %v), want (0, nil)", idx, err)
	}
	if idx, err := c.Seek(-5, SeekEnd); err != nil || idx != Invalid {
		t.Fatalf("Seek(-5, SeekEnd) = (%d, %v), want (Invalid, nil)", idx, err)
	}
}

func TestIterator_AddRoundTrips(t *testing.T) {
	j := journalWithRecords(t, 6)
	defer j.Close()

	c, err := j.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer c.Close()

	it := NewIterator(c)
	if _, err := it.Add(5); err != nil {
		t.Fatalf("Add(5): %v", err)
	}
	rec, err := it.Deref()
	if err != nil {
		t.Fatalf("Deref: %v", err)
	}
	if rec.Hash != 6 {
		t.Fatalf("Hash = %d, want 6", rec.Hash)
	}
	if _, err := it.Add(-5); err != nil {
		t.Fatalf("Add(-5): %v", err)
	}
	rec, err = it.Deref()
	if err != nil {
		t.Fatalf("Deref: %v", err)
	}
	if rec.Hash != 1 {
		t.Fatalf("Hash = %d, want 1", rec.Hash)
	}
}
