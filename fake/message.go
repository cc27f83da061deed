// File: fake/message.go
// Package fake provides in-memory test doubles for wire.Message,
// wire.Codec, transport.Transport and reactor.Dispatcher so the
// connection state machine and dispatch pipeline are fully testable
// without real sockets.
//
// Grounded on fake.Transport's controllable send/recv buffers and
// programmable errors, generalized from raw byte batches to sealed
// D-Bus messages plus a trivial length-prefixed Codec.
//
// Author: momentics <momentics@gmail.com>
package fake

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/go-sd-bus/wire"
)

// Message is a fully in-memory wire.Message used by tests and by
// Codec below.
type Message struct {
	typ         wire.MessageType
	flags       wire.HeaderFlags
	serial      uint32
	replySerial uint32
	path        string
	iface       string
	member      string
	sender      string
	destination string
	errorName   string
	body        string
	numFDs      int
	sealed      bool
	refs        int
	version     int
}

// NewMethodCall builds an unsealed method-call message.
func NewMethodCall(destination, path, iface, member string) *Message {
	return &Message{typ: wire.TypeMethodCall, destination: destination, path: path, iface: iface, member: member, refs: 1, version: 1}
}

// NewSignal builds an unsealed signal message.
func NewSignal(path, iface, member string) *Message {
	return &Message{typ: wire.TypeSignal, path: path, iface: iface, member: member, refs: 1, version: 1}
}

// NewMethodReturn builds a reply to call.
func NewMethodReturn(call wire.Message) *Message {
	return &Message{typ: wire.TypeMethodReturn, replySerial: call.Serial(), refs: 1, version: 1}
}

// NewMethodError builds an error reply to call.
func NewMethodError(call wire.Message, name, message string) *Message {
	return &Message{typ: wire.TypeMethodError, replySerial: call.Serial(), errorName: name, body: message, refs: 1, version: 1}
}

func (m *Message) Type() wire.MessageType { return m.typ }
func (m *Message) Flags() wire.HeaderFlags { return m.flags }
func (m *Message) SetNoReplyExpected(v bool) {
	if v {
		m.flags |= wire.FlagNoReplyExpected
	} else {
		m.flags &^= wire.FlagNoReplyExpected
	}
}
func (m *Message) Serial() uint32      { return m.serial }
func (m *Message) ReplySerial() uint32 { return m.replySerial }
func (m *Message) Path() string        { return m.path }
func (m *Message) Interface() string   { return m.iface }
func (m *Message) Member() string      { return m.member }
func (m *Message) Sender() string      { return m.sender }
func (m *Message) Destination() string { return m.destination }
func (m *Message) ErrorName() string   { return m.errorName }
func (m *Message) BodySize() int       { return len(m.body) }
func (m *Message) NumFDs() int         { return m.numFDs }
func (m *Message) Sealed() bool        { return m.sealed }
func (m *Message) Version() int        { return m.version }

func (m *Message) Seal(serial uint32) error {
	if m.sealed {
		return fmt.Errorf("fake: message already sealed")
	}
	m.serial = serial
	m.sealed = true
	return nil
}

func (m *Message) Ref() wire.Message { m.refs++; return m }
func (m *Message) Unref()            { m.refs-- }

func (m *Message) BodyString() (string, error) { return m.body, nil }
func (m *Message) SetBodyString(s string) error {
	if m.sealed {
		return fmt.Errorf("fake: cannot mutate sealed message")
	}
	m.body = s
	return nil
}

// SetSender sets the sender field, used by tests simulating inbound
// broker-labeled messages.
func (m *Message) SetSender(s string) { m.sender = s }

// SetVersion overrides the header version a message claims, used to
// exercise the connection's version-mismatch rejection.
func (m *Message) SetVersion(v int) { m.version = v }

// SetNumFDs overrides the fd count a message reports, used to exercise
// transports that reject fd-carrying writes without negotiated support.
func (m *Message) SetNumFDs(n int) { m.numFDs = n }

// Factory implements wire.Factory over fake.Message.
type Factory struct{}

func (Factory) NewMethodCall(destination, path, iface, member string) (wire.Message, error) {
	return NewMethodCall(destination, path, iface, member), nil
}
func (Factory) NewMethodReturn(call wire.Message) (wire.Message, error) {
	return NewMethodReturn(call), nil
}
func (Factory) NewError(call wire.Message, name, message string) (wire.Message, error) {
	return NewMethodError(call, name, message), nil
}
func (Factory) NewSignal(path, iface, member string) (wire.Message, error) {
	return NewSignal(path, iface, member), nil
}

// Codec is a trivial length-prefixed encoding sufficient to round-trip
// fake.Message through StreamTransport's framing logic in tests: a
// 16-byte fixed header compatible with wire.FrameLength, followed by a
// gob-free flat field encoding.
type Codec struct{}

func (Codec) Encode(msg wire.Message) ([]byte, []int, error) {
	m, ok := msg.(*Message)
	if !ok {
		return nil, nil, fmt.Errorf("fake: codec only encodes *fake.Message")
	}
	body := []byte(m.body)
	fields := encodeFields(m)

	hdr := make([]byte, wire.FixedHeaderLen)
	hdr[0] = 'l'
	hdr[1] = byte(m.typ)
	hdr[2] = byte(m.flags)
	hdr[3] = byte(m.version)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(body)))
	binary.LittleEndian.PutUint32(hdr[8:12], m.serial)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(fields)))

	frame := append(hdr, fields...)
	for len(frame)%8 != 0 {
		frame = append(frame, 0)
	}
	frame = append(frame, body...)
	return frame, nil, nil
}

func (Codec) Decode(frame []byte, fds []int) (wire.Message, error) {
	if len(frame) < wire.FixedHeaderLen {
		return nil, fmt.Errorf("fake: short frame")
	}
	var hdr [wire.FixedHeaderLen]byte
	copy(hdr[:], frame[:wire.FixedHeaderLen])
	bodyLen := binary.LittleEndian.Uint32(frame[4:8])
	serial := binary.LittleEndian.Uint32(frame[8:12])
	fieldsLen := binary.LittleEndian.Uint32(frame[12:16])

	fieldsStart := wire.FixedHeaderLen
	fieldsEnd := fieldsStart + int(fieldsLen)
	if fieldsEnd > len(frame) {
		return nil, fmt.Errorf("fake: truncated fields")
	}
	m := decodeFields(frame[fieldsStart:fieldsEnd])
	m.typ = wire.MessageType(hdr[1])
	m.flags = wire.HeaderFlags(hdr[2])
	m.version = int(hdr[3])
	m.serial = serial
	m.sealed = true
	m.numFDs = len(fds)

	bodyStart := align8(fieldsEnd)
	if bodyStart+int(bodyLen) > len(frame) {
		return nil, fmt.Errorf("fake: truncated body")
	}
	m.body = string(frame[bodyStart : bodyStart+int(bodyLen)])
	m.refs = 1
	return m, nil
}

func align8(n int) int { return (n + 7) &^ 7 }

// encodeFields/decodeFields serialize the addressing fields as
// NUL-separated strings in a fixed order — plenty for tests, no
// attempt to mirror the real D-Bus header-fields-array encoding.
func encodeFields(m *Message) []byte {
	parts := []string{m.path, m.iface, m.member, m.sender, m.destination, m.errorName, fmt.Sprint(m.replySerial)}
	out := []byte{}
	for _, p := range parts {
		out = append(out, []byte(p)...)
		out = append(out, 0)
	}
	return out
}

func decodeFields(b []byte) *Message {
	var parts []string
	start := 0
	for i, c := range b {
		if c == 0 {
			parts = append(parts, string(b[start:i]))
			start = i + 1
		}
	}
	for len(parts) < 7 {
		parts = append(parts, "")
	}
	m := &Message{path: parts[0], iface: parts[1], member: parts[2], sender: parts[3], destination: parts[4], errorName: parts[5]}
	fmt.Sscanf(parts[6], "%d", &m.replySerial)
	return m
}
