package wire

// FileInfo is per-file metadata exchanged in the TransferRequest and
// stored in a journal's CBOR metadata block. Field order follows
// spec.md §3; keyasint tags keep the CBOR encoding compact, the same
// convention the rest of the retrieval pack uses for packed records.
type FileInfo struct {
	Path   string `cbor:"1,keyasint"`
	Suffix string `cbor:"2,keyasint,omitempty"`
	Mode   uint32 `cbor:"3,keyasint"`
	UID    uint32 `cbor:"4,keyasint"`
	GID    uint32 `cbor:"5,keyasint"`
	Dev    uint64 `cbor:"6,keyasint"`
	BlkSize int64  `cbor:"7,keyasint"`
	BlkCount int64 `cbor:"8,keyasint"`
	Size   int64  `cbor:"9,keyasint"`
	ID     uint16 `cbor:"10,keyasint"`
}

// TargetPath returns the path this file should be materialized at,
// joining the relative path with its optional per-target suffix
// (SPEC_FULL.md §8).
func (f FileInfo) TargetPath() string {
	if f.Suffix == "" {
		return f.Path
	}
	return f.Path + f.Suffix
}
