package journal

import "encoding/binary"

// RecordSize is the packed, fixed size of every HashRecord in the hash
// region, matching spec.md §3's 32-byte layout.
const RecordSize = 32

// HashRecord is one packed entry in a journal's hash region: the content
// hash of one block, its destination offset/size, and the file it
// belongs to.
type HashRecord struct {
	Hash     uint64
	Offset   uint64
	Size     uint64
	FileID   uint16
	Padding  [6]byte
}

// Encode packs r into its 32-byte wire form.
func (r HashRecord) Encode() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.Hash)
	binary.LittleEndian.PutUint64(buf[8:16], r.Offset)
	binary.LittleEndian.PutUint64(buf[16:24], r.Size)
	binary.LittleEndian.PutUint16(buf[24:26], r.FileID)
	copy(buf[26:32], r.Padding[:])
	return buf
}

// DecodeRecord unpacks a 32-byte buffer into a HashRecord.
func DecodeRecord(buf []byte) HashRecord {
	return HashRecord{
		Hash:   binary.LittleEndian.Uint64(buf[0:8]),
		Offset: binary.LittleEndian.Uint64(buf[8:16]),
		Size:   binary.LittleEndian.Uint64(buf[16:24]),
		FileID: binary.LittleEndian.Uint16(buf[24:26]),
	}
}
