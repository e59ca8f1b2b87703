package wire

import (
	"fmt"
	"io"
)

// WriteFrame writes a ChunkHeader followed by payload to w. Both channels
// share this framing (spec.md §6): the control channel carries exactly
// one frame (a CBOR TransferRequest payload); data channels carry an
// arbitrary sequence.
func WriteFrame(w io.Writer, h ChunkHeader, payload []byte) error {
	if _, err := w.Write(h.Encode()); err != nil {
		return fmt.Errorf("wire: write chunk header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if err := writeFull(w, payload); err != nil {
		return fmt.Errorf("wire: write chunk payload: %w", err)
	}
	return nil
}

// ReadFrame reads one ChunkHeader and its declared payload from r.
// maxPayload bounds payloadLength as a sanity check (spec.md §7,
// InvalidFrame: "payload length beyond a sanity bound"); pass 0 to skip
// the check.
func ReadFrame(r io.Reader, maxPayload uint64) (ChunkHeader, []byte, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return ChunkHeader{}, nil, err
	}
	h, err := Decode(buf)
	if err != nil {
		return h, nil, err
	}
	if maxPayload > 0 && h.PayloadLength > maxPayload {
		return h, nil, fmt.Errorf("wire: payload length %d exceeds sanity bound %d", h.PayloadLength, maxPayload)
	}
	if h.PayloadLength == 0 {
		return h, nil, nil
	}
	payload := make([]byte, h.PayloadLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return h, nil, fmt.Errorf("wire: read chunk payload: %w", err)
	}
	return h, payload, nil
}

// ReadFrameInto behaves like ReadFrame but writes the payload into a
// caller-supplied buffer (typically a pooled Buffer) instead of
// allocating, matching the pipeline's "acquire then read into it"
// pattern (spec.md §4.7).
func ReadFrameInto(r io.Reader, dst []byte) (ChunkHeader, int, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return ChunkHeader{}, 0, err
	}
	h, err := Decode(buf)
	if err != nil {
		return h, 0, err
	}
	if h.PayloadLength == 0 {
		return h, 0, nil
	}
	if h.PayloadLength > uint64(len(dst)) {
		return h, 0, fmt.Errorf("wire: payload length %d exceeds buffer capacity %d", h.PayloadLength, len(dst))
	}
	if _, err := io.ReadFull(r, dst[:h.PayloadLength]); err != nil {
		return h, 0, fmt.Errorf("wire: read chunk payload: %w", err)
	}
	return h, int(h.PayloadLength), nil
}

func writeFull(w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}
