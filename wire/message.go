// File: wire/message.go
// Package wire declares the message value the connection core operates
// on. Marshalling a typed signature into the on-wire byte layout is an
// external concern (see Codec); wire only fixes the attributes the
// state machine and dispatch pipeline are allowed to read and mutate.
//
// Author: momentics <momentics@gmail.com>
package wire

// MessageType enumerates the four D-Bus message kinds.
type MessageType int

const (
	TypeInvalid MessageType = iota
	TypeMethodCall
	TypeMethodReturn
	TypeMethodError
	TypeSignal
)

func (t MessageType) String() string {
	switch t {
	case TypeMethodCall:
		return "method_call"
	case TypeMethodReturn:
		return "method_return"
	case TypeMethodError:
		return "error"
	case TypeSignal:
		return "signal"
	default:
		return "invalid"
	}
}

// HeaderFlags are the D-Bus header flag bits the core inspects or sets.
type HeaderFlags uint8

const (
	FlagNoReplyExpected     HeaderFlags = 1 << 0
	FlagNoAutoStart         HeaderFlags = 1 << 1
	FlagAllowInteractiveAuth HeaderFlags = 1 << 2
)

// Well-known error names the core may attach to synthesized replies.
const (
	ErrorNoReply       = "org.freedesktop.DBus.Error.NoReply"
	ErrorUnknownMethod = "org.freedesktop.DBus.Error.UnknownMethod"
	ErrorUnknownObject = "org.freedesktop.DBus.Error.UnknownObject"
	ErrorInvalidArgs   = "org.freedesktop.DBus.Error.InvalidArgs"
)

// Message is the externally-supplied value the connection transports,
// correlates and dispatches. The core mutates only the serial (at
// seal), NO_REPLY_EXPECTED (before seal), and the reference count.
type Message interface {
	Type() MessageType

	Flags() HeaderFlags
	SetNoReplyExpected(bool)

	// Serial is zero until Seal assigns one.
	Serial() uint32
	// ReplySerial is zero for non-reply message types.
	ReplySerial() uint32

	Path() string
	Interface() string
	Member() string
	Sender() string
	Destination() string
	ErrorName() string

	BodySize() int
	NumFDs() int

	Sealed() bool
	// Seal assigns serial as the message's serial and marks it sealed.
	// Returns an error if already sealed.
	Seal(serial uint32) error

	// Version is the D-Bus header protocol version this message was
	// built against; the connection refuses to seal a message whose
	// version is newer than what it negotiated.
	Version() int

	Ref() Message
	Unref()
}

// BodyStringer is implemented by messages whose body is a single
// STRING argument — the only body shape the core itself needs to read
// (the HELLO reply) or write (Ping/GetMachineId replies, synthesized
// errors).
type BodyStringer interface {
	BodyString() (string, error)
	SetBodyString(string) error
}

// Factory builds protocol messages the core must synthesize itself:
// the HELLO call, built-in peer interface replies, and error replies.
// Implemented externally by the marshaller; the core never constructs
// wire bytes directly.
type Factory interface {
	NewMethodCall(destination, path, iface, member string) (Message, error)
	NewMethodReturn(call Message) (Message, error)
	NewError(call Message, name, message string) (Message, error)
	NewSignal(path, iface, member string) (Message, error)
}
