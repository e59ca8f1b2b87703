// Package wire defines the on-the-wire framing shared by Draft's control
// and data channels: a fixed ChunkHeader followed by its payload.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed, 4096-byte size of every ChunkHeader on the
// wire. Only the first headerMeaningfulBytes carry meaning; the rest is
// reserved padding that keeps header+payload transfers block-aligned for
// direct I/O. Do not shrink this without bumping the version embedded in
// Magic (spec.md's Open Questions explicitly forbid it).
const HeaderSize = 4096

const headerMeaningfulBytes = 32

// magicBase is the top 48 bits identifying a Draft chunk; the low 16 bits
// carry the protocol version.
const magicBase uint64 = 0x55aa_aa55_da7a_0000

const magicVersionMask uint64 = 0xFFFF

// ProtocolVersion is embedded in the low 16 bits of every ChunkHeader's
// magic field.
const ProtocolVersion uint64 = 1

// Magic is the exact magic value this build writes.
const Magic uint64 = magicBase | ProtocolVersion

// FlagMore is bit 0 of ChunkHeader.Flags. Reserved and carried through
// unchanged; no fragmentation semantics are implemented over it
// (spec.md's Open Questions).
const FlagMore byte = 1 << 0

// ErrBadMagic is returned when a ChunkHeader's magic does not match
// Magic after masking the low 16 version bits.
var ErrBadMagic = errors.New("wire: chunk header magic mismatch")

// ChunkHeader is the fixed 4096-byte frame prefix preceding every chunk
// payload on both the control and data channels.
type ChunkHeader struct {
	Magic         uint64
	FileOffset    uint64
	PayloadLength uint64
	FileID        uint16
	Flags         byte
}

// NewChunkHeader builds a header with the current protocol magic.
func NewChunkHeader(fileID uint16, offset, payloadLength uint64, flags byte) ChunkHeader {
	return ChunkHeader{
		Magic:         Magic,
		FileOffset:    offset,
		PayloadLength: payloadLength,
		FileID:        fileID,
		Flags:         flags,
	}
}

// Encode writes h into a fresh HeaderSize-byte buffer in wire format
// (little-endian, zero-padded past the meaningful prefix).
func (h ChunkHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.Magic)
	binary.LittleEndian.PutUint64(buf[8:16], h.FileOffset)
	binary.LittleEndian.PutUint64(buf[16:24], h.PayloadLength)
	binary.LittleEndian.PutUint16(buf[24:26], h.FileID)
	buf[26] = h.Flags
	// buf[27:4096] stays zero: reserved + padding.
	return buf
}

// Decode parses a ChunkHeader out of a HeaderSize-byte buffer and
// validates its magic. On magic mismatch it returns ErrBadMagic; callers
// must terminate the connection per spec.md's frame-integrity invariant.
func Decode(buf []byte) (ChunkHeader, error) {
	if len(buf) < headerMeaningfulBytes {
		return ChunkHeader{}, fmt.Errorf("wire: short header: %d bytes", len(buf))
	}
	h := ChunkHeader{
		Magic:         binary.LittleEndian.Uint64(buf[0:8]),
		FileOffset:    binary.LittleEndian.Uint64(buf[8:16]),
		PayloadLength: binary.LittleEndian.Uint64(buf[16:24]),
		FileID:        binary.LittleEndian.Uint16(buf[24:26]),
		Flags:         buf[26],
	}
	if !h.MagicValid() {
		return h, ErrBadMagic
	}
	return h, nil
}

// MagicValid reports whether h.Magic matches Magic once the low 16
// version bits are masked off.
func (h ChunkHeader) MagicValid() bool {
	return h.Magic&^magicVersionMask == magicBase
}

// More reports whether FlagMore is set.
func (h ChunkHeader) More() bool {
	return h.Flags&FlagMore != 0
}
