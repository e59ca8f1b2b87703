package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// TransferRequest is the single CBOR message carried by the control
// channel's one ChunkHeader-framed chunk. Type and Client are reserved
// fields mirrored from spec.md §3 (`{type:0, client:0, info:[...]}`); a
// future protocol revision can use non-zero values to negotiate
// behavior without changing the framing.
type TransferRequest struct {
	Type   int        `cbor:"0,keyasint"`
	Client int        `cbor:"1,keyasint"`
	Info   []FileInfo `cbor:"2,keyasint"`
}

// NewTransferRequest builds a request carrying info, with the reserved
// Type/Client fields at their current (zero) values.
func NewTransferRequest(info []FileInfo) TransferRequest {
	return TransferRequest{Info: info}
}

// Marshal encodes the request as CBOR.
func (r TransferRequest) Marshal() ([]byte, error) {
	b, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal transfer request: %w", err)
	}
	return b, nil
}

// UnmarshalTransferRequest decodes a CBOR-encoded TransferRequest.
func UnmarshalTransferRequest(b []byte) (TransferRequest, error) {
	var r TransferRequest
	if err := cbor.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("wire: unmarshal transfer request: %w", err)
	}
	return r, nil
}
