package journal

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/draftxfer/draft/pkg/wire"
	"github.com/fxamacker/cbor/v2"
)

// magic is the 8-byte ASCII file magic, space-terminated per spec.md §6.
const magic = "DRAFTJF "

// headerRegionSize is the size of the fixed file header; CBOR metadata
// begins immediately after it at this offset.
const headerRegionSize = 64

// alignment is the byte multiple the hash region's start (journalOffset)
// must land on.
const alignment = 512

// ErrBadMagic is returned when a journal file's header magic doesn't
// match, spec.md §7's JournalFormat error kind.
var ErrBadMagic = errors.New("journal: bad file magic")

// ErrFormat covers any other header inconsistency (offsets out of range,
// hash region not a multiple of RecordSize).
var ErrFormat = errors.New("journal: malformed header")

type fileHeader struct {
	JournalOffset uint64
	CBORSize      uint64
}

func (h fileHeader) encode() []byte {
	buf := make([]byte, headerRegionSize)
	copy(buf[0:8], magic)
	binary.LittleEndian.PutUint64(buf[8:16], h.JournalOffset)
	binary.LittleEndian.PutUint64(buf[16:24], h.CBORSize)
	return buf
}

func decodeFileHeader(buf []byte) (fileHeader, error) {
	if len(buf) < headerRegionSize {
		return fileHeader{}, fmt.Errorf("%w: short header (%d bytes)", ErrFormat, len(buf))
	}
	if string(buf[0:8]) != magic {
		return fileHeader{}, ErrBadMagic
	}
	h := fileHeader{
		JournalOffset: binary.LittleEndian.Uint64(buf[8:16]),
		CBORSize:      binary.LittleEndian.Uint64(buf[16:24]),
	}
	if h.JournalOffset > (1<<63)-1 || h.CBORSize > h.JournalOffset {
		return h, fmt.Errorf("%w: journalOffset/cborSize out of range", ErrFormat)
	}
	return h, nil
}

// metadata is the CBOR object stored right after the fixed file header
// (spec.md §3's "CBOR metadata" region).
type metadata struct {
	VersionMajor       uint16          `cbor:"version_major"`
	VersionMinor       uint16          `cbor:"version_minor"`
	BirthdateEpochNsec int64           `cbor:"birthdate_epoch_nsec"`
	JournalAlignment   uint32          `cbor:"journal_alignment"`
	FileInfo           []wire.FileInfo `cbor:"file_info"`
}

func marshalMetadata(m metadata) ([]byte, error) {
	b, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("journal: marshal metadata: %w", err)
	}
	return b, nil
}

func unmarshalMetadata(b []byte) (metadata, error) {
	var m metadata
	if err := cbor.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("journal: unmarshal metadata: %w", err)
	}
	return m, nil
}

// alignUp rounds n up to the next multiple of align.
func alignUp(n uint64, align uint64) uint64 {
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}
