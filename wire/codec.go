// File: wire/codec.go
// Author: momentics <momentics@gmail.com>
//
// Codec is the boundary to the external marshaller: turning a typed
// signature + arguments into on-wire bytes, and back, is out of scope
// for this module (see spec §1). The stream transport still needs to
// know the fixed 16-byte header shape to compute a frame's total
// length before a full message can be decoded — that much framing
// knowledge lives here as plain data, not marshalling logic.
package wire

import "errors"

// FixedHeaderLen is the size of the D-Bus fixed message header.
const FixedHeaderLen = 16

// ErrShortHeader is returned by PeekFrameLength when fewer than
// FixedHeaderLen bytes are available.
var ErrShortHeader = errors.New("wire: short header")

// PeekFrameLength computes a complete message's total frame length
// from the head of buf, without consuming it. It returns ErrShortHeader
// if buf has not yet accumulated a full fixed header; the caller should
// treat that as "not enough data yet", not a protocol error.
func PeekFrameLength(buf []byte) (int, error) {
	if len(buf) < FixedHeaderLen {
		return 0, ErrShortHeader
	}
	var hdr [FixedHeaderLen]byte
	copy(hdr[:], buf[:FixedHeaderLen])
	return FrameLength(hdr)
}

// FrameLength computes the total number of bytes a complete message
// occupies on the wire, given its already-read fixed header. The
// caller is responsible for having read exactly FixedHeaderLen bytes
// into hdr.
//
// Layout (little/big endian selected by hdr[0]):
//
//	byte 0: endianness ('l' or 'B')
//	byte 1: message type
//	byte 2: flags
//	byte 3: protocol version
//	bytes 4-7: body length (uint32)
//	bytes 8-11: serial (uint32)
//	bytes 12-15: header fields array length (uint32)
func FrameLength(hdr [FixedHeaderLen]byte) (int, error) {
	big := hdr[0] == 'B'
	bodyLen := decodeU32(hdr[4:8], big)
	fieldsLen := decodeU32(hdr[12:16], big)
	// the header fields array is padded to an 8-byte boundary before
	// the body begins.
	aligned := align8(FixedHeaderLen + int(fieldsLen))
	return aligned + int(bodyLen), nil
}

// HeaderVersion returns the protocol version byte of a fixed header.
func HeaderVersion(hdr [FixedHeaderLen]byte) int { return int(hdr[3]) }

func decodeU32(b []byte, big bool) uint32 {
	if big {
		return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func align8(n int) int {
	return (n + 7) &^ 7
}

// Codec decodes a complete on-wire frame (as sized by FrameLength)
// into a Message, and encodes a sealed Message plus any attached fds
// back into bytes for the transport to write. Implemented externally;
// go-sd-bus core never inspects a message's byte layout beyond the
// fixed header above.
type Codec interface {
	Decode(frame []byte, fds []int) (Message, error)
	Encode(msg Message) (frame []byte, fds []int, err error)
}
