package transport_test

import (
	"testing"

	"github.com/momentics/go-sd-bus/fake"
	"github.com/momentics/go-sd-bus/transport"
)

// memBuf is a one-directional byte channel shared between two memConns.
type memBuf struct {
	data []byte
}

// memConn is a minimal in-memory rawConn double: it satisfies
// transport's unexported rawConn interface structurally (Read/Write/
// Close/Fd) without needing to name the interface itself.
type memConn struct {
	write  *memBuf
	read   *memBuf
	closed bool
}

func newMemConnPair() (a, b *memConn) {
	ab := &memBuf{}
	ba := &memBuf{}
	a = &memConn{write: ab, read: ba}
	b = &memConn{write: ba, read: ab}
	return a, b
}

func (m *memConn) Write(p []byte, fds []int) (int, error) {
	m.write.data = append(m.write.data, p...)
	return len(p), nil
}

func (m *memConn) Read(p []byte) (int, []int, error) {
	if len(m.read.data) == 0 {
		return 0, nil, transport.ErrWouldBlock
	}
	n := copy(p, m.read.data)
	m.read.data = m.read.data[n:]
	return n, nil, nil
}

func (m *memConn) Close() error { m.closed = true; return nil }
func (m *memConn) Fd() uintptr  { return 0 }

func stepUntilDone(t *testing.T, client, server *transport.StreamTransport, maxTicks int) {
	t.Helper()
	clientDone, serverDone := false, false
	for i := 0; i < maxTicks; i++ {
		if !clientDone {
			done, err := client.StepAuth()
			if err != nil {
				t.Fatalf("client StepAuth: %v", err)
			}
			clientDone = done
		}
		if !serverDone {
			done, err := server.StepAuth()
			if err != nil {
				t.Fatalf("server StepAuth: %v", err)
			}
			serverDone = done
		}
		if clientDone && serverDone {
			return
		}
	}
	t.Fatalf("SASL handshake did not complete within %d ticks (client=%v server=%v)", maxTicks, clientDone, serverDone)
}

func TestSASLHandshakeAnonymousRoundTrip(t *testing.T) {
	a, b := newMemConnPair()
	codec := fake.Codec{}
	client := transport.NewClientStreamTransport(a, codec, true, false, "")
	server := transport.NewServerStreamTransport(b, codec, "deadbeefcafef00d", false)

	stepUntilDone(t, client, server, 20)

	if client.Features().CanPassFds {
		t.Fatal("expected no fd-passing capability when neither side negotiated it")
	}
	if client.GUID() != "deadbeefcafef00d" {
		t.Fatalf("client GUID = %q, want deadbeefcafef00d", client.GUID())
	}
}

func TestSASLHandshakeExternalRoundTrip(t *testing.T) {
	a, b := newMemConnPair()
	codec := fake.Codec{}
	client := transport.NewClientStreamTransport(a, codec, false, false, "31303030")
	server := transport.NewServerStreamTransport(b, codec, "guid0001", false)

	stepUntilDone(t, client, server, 20)

	if client.GUID() != "guid0001" {
		t.Fatalf("client GUID = %q, want guid0001", client.GUID())
	}
}

func TestSASLHandshakeNegotiatesUnixFD(t *testing.T) {
	a, b := newMemConnPair()
	codec := fake.Codec{}
	client := transport.NewClientStreamTransport(a, codec, true, true, "")
	server := transport.NewServerStreamTransport(b, codec, "guid0002", true)

	stepUntilDone(t, client, server, 20)

	if !client.Features().CanPassFds {
		t.Fatal("expected fd-passing capability once both sides negotiated NEGOTIATE_UNIX_FD/AGREE_UNIX_FD")
	}
	if !server.Features().CanPassFds {
		t.Fatal("expected server to also record fd-passing capability")
	}
}

func TestSASLHandshakeSkipsFDWhenOnlyServerWants(t *testing.T) {
	a, b := newMemConnPair()
	codec := fake.Codec{}
	// the client never sends NEGOTIATE_UNIX_FD even though the server
	// would agree to it, so neither side ends up with fd capability.
	client := transport.NewClientStreamTransport(a, codec, true, false, "")
	server := transport.NewServerStreamTransport(b, codec, "guid0003", true)

	stepUntilDone(t, client, server, 20)

	if client.Features().CanPassFds {
		t.Fatal("expected no fd capability on the client when it never asked to negotiate")
	}
}

func TestSASLHandshakeSkipsFDWhenOnlyServerRefuses(t *testing.T) {
	a, b := newMemConnPair()
	codec := fake.Codec{}
	// the client asks to negotiate but the server was constructed with
	// its own negotiation policy off, so it must not grant AGREE_UNIX_FD
	// just because the client requested it.
	client := transport.NewClientStreamTransport(a, codec, true, true, "")
	server := transport.NewServerStreamTransport(b, codec, "guid0004", false)

	stepUntilDone(t, client, server, 20)

	if client.Features().CanPassFds {
		t.Fatal("expected no fd capability on the client when the server never agreed")
	}
	if server.Features().CanPassFds {
		t.Fatal("expected no fd capability on the server, which never wanted fd negotiation")
	}
}

func TestStreamTransportWriteReadRoundTrip(t *testing.T) {
	a, b := newMemConnPair()
	codec := fake.Codec{}
	client := transport.NewClientStreamTransport(a, codec, true, false, "")
	server := transport.NewServerStreamTransport(b, codec, "guid0004", false)
	stepUntilDone(t, client, server, 20)

	msg := fake.NewSignal("/p", "i.face", "Member")
	msg.Seal(7)

	idx := 0
	res, err := client.Write(msg, &idx)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if res != transport.WriteDone {
		t.Fatalf("Write result = %v, want WriteDone", res)
	}

	got, err := server.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == nil {
		t.Fatal("expected a decoded message, got nil")
	}
	if got.Serial() != 7 || got.Member() != "Member" || got.Interface() != "i.face" {
		t.Fatalf("decoded message mismatch: serial=%d member=%q iface=%q", got.Serial(), got.Member(), got.Interface())
	}
}

func TestStreamTransportReadReturnsNilUntilFrameComplete(t *testing.T) {
	a, b := newMemConnPair()
	codec := fake.Codec{}
	client := transport.NewClientStreamTransport(a, codec, true, false, "")
	server := transport.NewServerStreamTransport(b, codec, "guid0005", false)
	stepUntilDone(t, client, server, 20)

	msg := fake.NewSignal("/p", "i.face", "Partial")
	msg.Seal(1)
	frame, _, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frame) < 2 {
		t.Fatal("expected a multi-byte frame")
	}
	// deliver the frame one byte short of complete.
	b.read.data = append(b.read.data, frame[:len(frame)-1]...)
	got, err := server.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != nil {
		t.Fatal("expected no message before the frame is fully buffered")
	}
	// deliver the final byte.
	b.read.data = append(b.read.data, frame[len(frame)-1])
	got, err = server.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == nil || got.Member() != "Partial" {
		t.Fatalf("expected the completed message, got %v", got)
	}
}

func TestStreamTransportWriteRejectsFDsWithoutCapability(t *testing.T) {
	a, b := newMemConnPair()
	codec := fake.Codec{}
	client := transport.NewClientStreamTransport(a, codec, true, false, "")
	server := transport.NewServerStreamTransport(b, codec, "guid0006", false)
	stepUntilDone(t, client, server, 20)

	msg := fake.NewSignal("/p", "i.face", "M")
	msg.SetNumFDs(1)
	msg.Seal(1)
	idx := 0
	if _, err := client.Write(msg, &idx); err != transport.ErrNotSupported {
		t.Fatalf("Write with fds and no capability: err = %v, want ErrNotSupported", err)
	}
}
