package journal

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/draftxfer/draft/pkg/wire"
)

// CurrentVersionMajor/Minor are the metadata version fields this build
// writes.
const (
	CurrentVersionMajor = 1
	CurrentVersionMinor = 0
)

// Journal is an append-only binary log: a fixed FileHeader, a CBOR
// metadata block, and a growing region of packed HashRecords (spec.md
// §3/§4.3). Every append through this handle is serialized behind
// appendMu, a mutex private to the journal, in place of an atomic
// positional append, so concurrent writers on one Journal never tear or
// overlap records.
type Journal struct {
	path          string
	f             *os.File
	journalOffset uint64
	meta          metadata

	appendMu sync.Mutex
}

// Create makes a new journal at path, writing the file header and CBOR
// metadata for info, and pre-allocating/zero-padding up to the
// 512-byte-aligned start of the hash region.
func Create(path string, info []wire.FileInfo) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", path, err)
	}

	meta := metadata{
		VersionMajor:       CurrentVersionMajor,
		VersionMinor:       CurrentVersionMinor,
		BirthdateEpochNsec: time.Now().UnixNano(),
		JournalAlignment:   alignment,
		FileInfo:           info,
	}
	cborBytes, err := marshalMetadata(meta)
	if err != nil {
		f.Close()
		return nil, err
	}

	journalOffset := alignUp(headerRegionSize+uint64(len(cborBytes)), alignment)
	fh := fileHeader{JournalOffset: journalOffset, CBORSize: uint64(len(cborBytes))}

	if _, err := f.WriteAt(fh.encode(), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: write header: %w", err)
	}
	if _, err := f.WriteAt(cborBytes, headerRegionSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: write metadata: %w", err)
	}
	// Pre-allocate the header region by truncating out to journalOffset;
	// the gap between the CBOR block and journalOffset reads as zero.
	if err := f.Truncate(int64(journalOffset)); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: preallocate header region: %w", err)
	}

	return &Journal{path: path, f: f, journalOffset: journalOffset, meta: meta}, nil
}

// Open opens an existing journal for read and append, validating its
// file header.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	hdrBuf := make([]byte, headerRegionSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: read header: %w", err)
	}
	fh, err := decodeFileHeader(hdrBuf)
	if err != nil {
		f.Close()
		return nil, err
	}

	cborBuf := make([]byte, fh.CBORSize)
	if fh.CBORSize > 0 {
		if _, err := f.ReadAt(cborBuf, headerRegionSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("journal: read metadata: %w", err)
		}
	}
	meta, err := unmarshalMetadata(cborBuf)
	if err != nil {
		f.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: stat: %w", err)
	}
	if (info.Size()-int64(fh.JournalOffset))%RecordSize != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: hash region size is not a multiple of %d", ErrFormat, RecordSize)
	}

	return &Journal{path: path, f: f, journalOffset: fh.JournalOffset, meta: meta}, nil
}

// Path returns the journal's backing file path.
func (j *Journal) Path() string {
	return j.path
}

// WriteHash formats and atomically appends a HashRecord for one block.
func (j *Journal) WriteHash(fileID uint16, offset, size, hash uint64) error {
	return j.WriteRecord(HashRecord{Hash: hash, Offset: offset, Size: size, FileID: fileID})
}

// WriteRecord atomically appends a pre-built HashRecord.
func (j *Journal) WriteRecord(r HashRecord) error {
	j.appendMu.Lock()
	defer j.appendMu.Unlock()

	info, err := j.f.Stat()
	if err != nil {
		return fmt.Errorf("journal: stat before append: %w", err)
	}
	if _, err := j.f.WriteAt(r.Encode(), info.Size()); err != nil {
		return fmt.Errorf("journal: append record: %w", err)
	}
	return nil
}

// HashCount returns the number of hash records currently in the
// journal, derived from file size.
func (j *Journal) HashCount() (int64, error) {
	info, err := j.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("journal: stat: %w", err)
	}
	return (info.Size() - int64(j.journalOffset)) / RecordSize, nil
}

// FileInfo returns the CBOR metadata's file_info array.
func (j *Journal) FileInfo() []wire.FileInfo {
	return j.meta.FileInfo
}

// CreationDate returns the metadata's birthdate.
func (j *Journal) CreationDate() time.Time {
	return time.Unix(0, j.meta.BirthdateEpochNsec)
}

// Sync forces the journal's data to stable storage.
func (j *Journal) Sync() error {
	if err := j.f.Sync(); err != nil {
		return fmt.Errorf("journal: sync: %w", err)
	}
	return nil
}

// Close releases the journal's file handle without altering its
// contents.
func (j *Journal) Close() error {
	return j.f.Close()
}

// Rename atomically renames the journal's backing file to newPath.
func (j *Journal) Rename(newPath string) error {
	if err := os.Rename(j.path, newPath); err != nil {
		return fmt.Errorf("journal: rename %s -> %s: %w", j.path, newPath, err)
	}
	j.path = newPath
	return nil
}

// Cursor opens an independent read-only view of the journal's hash
// region, starting invalid (spec.md §4.3's cursor()).
func (j *Journal) Cursor() (*Cursor, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("journal: open cursor view: %w", err)
	}
	return &Cursor{f: f, journalOffset: j.journalOffset, index: Invalid}, nil
}

// Begin returns a cursor positioned at record 0 (invalid if there are no
// records).
func (j *Journal) Begin() (*Cursor, error) {
	c, err := j.Cursor()
	if err != nil {
		return nil, err
	}
	if _, err := c.Seek(0, SeekSet); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// End returns a cursor positioned one past the last record, which is
// always invalid.
func (j *Journal) End() (*Cursor, error) {
	return j.Cursor()
}
