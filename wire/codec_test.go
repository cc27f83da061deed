package wire_test

import (
	"testing"

	"github.com/momentics/go-sd-bus/wire"
)

func header(endian byte, typ, flags, version byte, bodyLen, serial, fieldsLen uint32) [wire.FixedHeaderLen]byte {
	var h [wire.FixedHeaderLen]byte
	h[0] = endian
	h[1] = typ
	h[2] = flags
	h[3] = version
	putU32(h[4:8], bodyLen, endian == 'B')
	putU32(h[8:12], serial, endian == 'B')
	putU32(h[12:16], fieldsLen, endian == 'B')
	return h
}

func putU32(b []byte, v uint32, big bool) {
	if big {
		b[0] = byte(v >> 24)
		b[1] = byte(v >> 16)
		b[2] = byte(v >> 8)
		b[3] = byte(v)
		return
	}
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestFrameLengthLittleEndianAlignsFieldsToEight(t *testing.T) {
	h := header('l', byte(wire.TypeMethodCall), 0, 1, 4, 1, 5)
	got, err := wire.FrameLength(h)
	if err != nil {
		t.Fatalf("FrameLength: %v", err)
	}
	// fixed header (16) + fields (5) aligned to 8 => 24, plus body (4) => 28.
	if got != 28 {
		t.Fatalf("FrameLength = %d, want 28", got)
	}
}

func TestFrameLengthBigEndian(t *testing.T) {
	h := header('B', byte(wire.TypeSignal), 0, 1, 0, 7, 0)
	got, err := wire.FrameLength(h)
	if err != nil {
		t.Fatalf("FrameLength: %v", err)
	}
	if got != wire.FixedHeaderLen {
		t.Fatalf("FrameLength = %d, want %d", got, wire.FixedHeaderLen)
	}
}

func TestHeaderVersion(t *testing.T) {
	h := header('l', byte(wire.TypeMethodCall), 0, 1, 0, 1, 0)
	if wire.HeaderVersion(h) != 1 {
		t.Fatalf("HeaderVersion = %d, want 1", wire.HeaderVersion(h))
	}
}

func TestMessageTypeString(t *testing.T) {
	cases := map[wire.MessageType]string{
		wire.TypeMethodCall:   "method_call",
		wire.TypeMethodReturn: "method_return",
		wire.TypeMethodError:  "error",
		wire.TypeSignal:       "signal",
		wire.TypeInvalid:      "invalid",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", typ, got, want)
		}
	}
}
