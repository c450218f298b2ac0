package protocol

import (
	"errors"
	"fmt"
	"io"
)

// ReadCommand reads one command from r. Errors wrapping ErrDropped leave r
// positioned at the next header; errors wrapping ErrPeerClosed and any other
// error mean the stream cannot be used any more.
//
// Headers with a bad marker or opcode are skipped without reading a payload.
// Payloads larger than maxPayload are drained and skipped. A maxPayload of 0,
// or one above MaxPayload, means MaxPayload.
func ReadCommand(r io.Reader, maxPayload uint32) (Command, error) {
	if maxPayload == 0 || maxPayload > MaxPayload {
		maxPayload = MaxPayload
	}

	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Command{}, fmt.Errorf("%w: %v", ErrPeerClosed, err)
		}
		return Command{}, fmt.Errorf("read header: %w", err)
	}

	h := parseHeader(&buf)
	if h.Marker != Marker {
		return Command{}, fmt.Errorf("%w: bad marker %q", ErrDropped, h.Marker[:])
	}
	if !h.Opcode.Valid() {
		return Command{}, fmt.Errorf("%w: unknown opcode %d", ErrDropped, uint8(h.Opcode))
	}

	if h.PayloadLength > maxPayload {
		if _, err := io.CopyN(io.Discard, r, int64(h.PayloadLength)); err != nil {
			return Command{}, payloadError(err)
		}
		return Command{}, fmt.Errorf("%w: %s payload of %d bytes exceeds %d", ErrDropped, h.Opcode, h.PayloadLength, maxPayload)
	}

	payload := make([]byte, h.PayloadLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Command{}, payloadError(err)
	}

	return Command{
		Opcode:    h.Opcode,
		Callback:  h.Callback,
		Parameter: h.Parameter,
		Payload:   payload,
	}, nil
}

func payloadError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: short payload: %v", ErrDropped, err)
	}
	return fmt.Errorf("read payload: %w", err)
}
