// Package protocol implements the command stream spoken between the show
// controller and a display server: 15 byte headers followed by a payload,
// answered by 7 byte acknowledgements.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the length of a command header.
	HeaderSize = 15
	// AckSize is the length of an acknowledgement.
	AckSize = 7
	// HandshakeSize is the length of the greeting sent on connect.
	HandshakeSize = 7
	// MaxPayload is the largest payload ever buffered, whatever the
	// configured limit.
	MaxPayload = 64 << 20
)

var (
	// Marker opens every command header.
	Marker = [4]byte{'y', 'i', 'f', 'f'}
	// AckMarker opens every acknowledgement.
	AckMarker = [2]byte{0xE6, 0x21}
	// HandshakePrefix precedes the server id in the greeting.
	HandshakePrefix = [6]byte{'h', 'e', 'w', 'w', 'o', ':'}
)

var (
	// ErrPeerClosed means the stream ended; the connection is unusable.
	ErrPeerClosed = errors.New("peer closed the connection")
	// ErrDropped means one message was skipped; the stream is still usable.
	ErrDropped = errors.New("message dropped")
)

// Opcode selects what a command does.
type Opcode uint8

const (
	QueryAnimation Opcode = 0x01 + iota
	UploadFrame
	PlayAnimation
	ShowText
	SetBrightness
)

// Valid reports whether o is a known opcode.
func (o Opcode) Valid() bool {
	return o >= QueryAnimation && o <= SetBrightness
}

func (o Opcode) String() string {
	switch o {
	case QueryAnimation:
		return "QueryAnimation"
	case UploadFrame:
		return "UploadFrame"
	case PlayAnimation:
		return "PlayAnimation"
	case ShowText:
		return "ShowText"
	case SetBrightness:
		return "SetBrightness"
	}
	return fmt.Sprintf("Opcode(%d)", uint8(o))
}

// CallbackID correlates a command with its acknowledgement. The zero value
// asks for no acknowledgement.
type CallbackID [4]byte

// Requested reports whether an acknowledgement is wanted.
func (c CallbackID) Requested() bool {
	return c != CallbackID{}
}

func (c CallbackID) String() string {
	return fmt.Sprintf("%08x", binary.BigEndian.Uint32(c[:]))
}

// Header is the fixed part of a command.
type Header struct {
	Marker        [4]byte
	Opcode        Opcode
	Callback      CallbackID
	Parameter     uint16
	PayloadLength uint32
}

// ParseHeader decodes the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("header needs %d bytes, got %d", HeaderSize, len(b))
	}
	return parseHeader((*[HeaderSize]byte)(b)), nil
}

func parseHeader(b *[HeaderSize]byte) Header {
	var h Header
	copy(h.Marker[:], b[0:4])
	h.Opcode = Opcode(b[4])
	copy(h.Callback[:], b[5:9])
	h.Parameter = binary.BigEndian.Uint16(b[9:11])
	h.PayloadLength = binary.BigEndian.Uint32(b[11:15])
	return h
}

// Valid reports whether the marker and opcode are acceptable.
func (h Header) Valid() bool {
	return h.Marker == Marker && h.Opcode.Valid()
}

// AppendBinary appends the wire form of h to b.
func (h Header) AppendBinary(b []byte) []byte {
	b = append(b, h.Marker[:]...)
	b = append(b, byte(h.Opcode))
	b = append(b, h.Callback[:]...)
	b = binary.BigEndian.AppendUint16(b, h.Parameter)
	return binary.BigEndian.AppendUint32(b, h.PayloadLength)
}

// Command is a decoded header together with its payload.
type Command struct {
	Opcode    Opcode
	Callback  CallbackID
	Parameter uint16
	Payload   []byte
}

// MarshalBinary encodes c as header plus payload.
func (c Command) MarshalBinary() ([]byte, error) {
	h := Header{
		Marker:        Marker,
		Opcode:        c.Opcode,
		Callback:      c.Callback,
		Parameter:     c.Parameter,
		PayloadLength: uint32(len(c.Payload)),
	}
	b := make([]byte, 0, HeaderSize+len(c.Payload))
	b = h.AppendBinary(b)
	return append(b, c.Payload...), nil
}

// EncodeAck builds the acknowledgement for callback.
func EncodeAck(callback CallbackID, success bool) []byte {
	b := make([]byte, 0, AckSize)
	b = append(b, AckMarker[:]...)
	b = append(b, callback[:]...)
	if success {
		return append(b, 0x01)
	}
	return append(b, 0x00)
}

// ParseAck decodes an acknowledgement.
func ParseAck(b []byte) (CallbackID, bool, error) {
	var cb CallbackID
	if len(b) != AckSize || b[0] != AckMarker[0] || b[1] != AckMarker[1] {
		return cb, false, fmt.Errorf("malformed acknowledgement % x", b)
	}
	copy(cb[:], b[2:6])
	return cb, b[6] != 0, nil
}

// Handshake returns the greeting announcing server id.
func Handshake(id byte) []byte {
	b := make([]byte, 0, HandshakeSize)
	b = append(b, HandshakePrefix[:]...)
	return append(b, id)
}
