package journal

import "fmt"

// Difference is one disagreement between two journals at the block
// (fileId, offset) level.
type Difference struct {
	FileID uint16
	Offset uint64
	Size   uint64
	HashA  uint64
	HashB  uint64
}

type blockKey struct {
	FileID uint16
	Offset uint64
}

type pendingEntry struct {
	hash uint64
	size uint64
	from byte // 'A' or 'B'
}

// Diff streams both journals in lockstep and returns their differences
// keyed by (fileId, offset), per spec.md §4.13. The result is
// order-independent: Diff(a, b) and Diff(b, a) return the same set with
// HashA/HashB swapped, and Diff(a, a) is always empty.
func Diff(a, b *Journal) ([]Difference, error) {
	ca, err := a.Begin()
	if err != nil {
		return nil, fmt.Errorf("journal: diff begin A: %w", err)
	}
	defer ca.Close()
	cb, err := b.Begin()
	if err != nil {
		return nil, fmt.Errorf("journal: diff begin B: %w", err)
	}
	defer cb.Close()

	pending := make(map[blockKey]pendingEntry)
	var diffs []Difference

	for ca.Valid() || cb.Valid() {
		if ca.Valid() {
			rec, _, err := ca.HashRecord()
			if err != nil {
				return nil, err
			}
			if d, ok := observe(pending, rec, 'A'); ok {
				diffs = append(diffs, d)
			}
			if _, err := ca.Seek(1, SeekCurrent); err != nil {
				return nil, err
			}
		}
		if cb.Valid() {
			rec, _, err := cb.HashRecord()
			if err != nil {
				return nil, err
			}
			if d, ok := observe(pending, rec, 'B'); ok {
				diffs = append(diffs, d)
			}
			if _, err := cb.Seek(1, SeekCurrent); err != nil {
				return nil, err
			}
		}
	}

	for key, entry := range pending {
		d := Difference{FileID: key.FileID, Offset: key.Offset, Size: entry.size}
		if entry.from == 'A' {
			d.HashA = entry.hash
		} else {
			d.HashB = entry.hash
		}
		diffs = append(diffs, d)
	}

	return diffs, nil
}

// observe folds one record from side `from` into pending, returning a
// Difference (and ok=true) exactly when it completes a mismatched pair.
// A matched pair is resolved silently by deleting the pending entry.
func observe(pending map[blockKey]pendingEntry, rec HashRecord, from byte) (Difference, bool) {
	key := blockKey{FileID: rec.FileID, Offset: rec.Offset}
	existing, ok := pending[key]
	if !ok {
		pending[key] = pendingEntry{hash: rec.Hash, size: rec.Size, from: from}
		return Difference{}, false
	}
	if existing.from == from {
		// Same side seen twice for this block (duplicate/overwritten
		// record); keep the most recent value, no diff to report yet.
		pending[key] = pendingEntry{hash: rec.Hash, size: rec.Size, from: from}
		return Difference{}, false
	}
	delete(pending, key)
	if existing.hash == rec.Hash {
		return Difference{}, false
	}
	d := Difference{FileID: rec.FileID, Offset: rec.Offset, Size: rec.Size}
	if from == 'A' {
		d.HashA = rec.Hash
		d.HashB = existing.hash
	} else {
		d.HashA = existing.hash
		d.HashB = rec.Hash
	}
	return d, true
}
