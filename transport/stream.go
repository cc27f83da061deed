// File: transport/stream.go
// Author: momentics <momentics@gmail.com>
//
// StreamTransport implements the unix/tcp/exec byte-stream variant of
// the transport contract (§4.2): framing by peeking the fixed 16-byte
// header to compute a frame's length, then decoding one message per
// completed frame via an injected wire.Codec, plus the SASL handshake.
// Grounded on internal/transport.TransportWrapper's swappable
// platform-implementation facade and transport_linux.go's raw
// unix.Socket Send/Recv batching, generalized from opportunistic byte
// batches to length-delimited D-Bus frames with ancillary fd data.
package transport

import (
	"github.com/momentics/go-sd-bus/wire"
)

// rawConn is the minimal non-blocking byte-stream + fd-passing
// contract a platform backend must provide. Implemented by
// rawconn_linux.go on Linux; rawconn_stub.go rejects dialing
// elsewhere.
type rawConn interface {
	// Read reads available bytes and any fds carried alongside them.
	// Returns ErrWouldBlock if no data is currently available.
	Read(p []byte) (n int, fds []int, err error)
	// Write writes p, optionally passing fds via ancillary data on the
	// first call for a given message. Returns ErrWouldBlock if the
	// socket buffer is full without having written anything.
	Write(p []byte, fds []int) (n int, err error)
	Close() error
	Fd() uintptr
}

// StreamTransport implements Transport over a byte-stream socket.
type StreamTransport struct {
	conn  rawConn
	codec wire.Codec

	serverRole bool
	client     *saslClient
	server     *serverSASL

	// framing/read state
	readBuf    []byte
	pendingFds []int

	canPassFds  bool
	wantFds     bool
	fdsAttached bool
}

// NewClientStreamTransport constructs a StreamTransport that drives
// the client side of SASL authentication over conn.
func NewClientStreamTransport(conn rawConn, codec wire.Codec, anonymous, wantFds bool, uidHex string) *StreamTransport {
	return &StreamTransport{
		conn:    conn,
		codec:   codec,
		wantFds: wantFds,
		client:  newSASLClient(anonymous, wantFds, uidHex),
	}
}

// NewServerStreamTransport constructs a StreamTransport that drives
// the server side of SASL authentication over conn.
func NewServerStreamTransport(conn rawConn, codec wire.Codec, guid string, wantFds bool) *StreamTransport {
	return &StreamTransport{
		conn:       conn,
		codec:      codec,
		serverRole: true,
		wantFds:    wantFds,
		server:     newServerSASL(guid, wantFds),
	}
}

// StepAuth advances the SASL handshake. Called repeatedly by the
// connection while in AUTHENTICATING. Returns done=true once BEGIN has
// been sent/received and framed message I/O may begin.
func (t *StreamTransport) StepAuth() (done bool, err error) {
	if t.serverRole {
		return t.stepServerAuth()
	}
	return t.stepClientAuth()
}

func (t *StreamTransport) stepClientAuth() (bool, error) {
	if t.client.PendingWrite() {
		out := t.client.TakeOutgoing()
		n, err := t.conn.Write(out, nil)
		if err != nil && err != ErrWouldBlock {
			return false, err
		}
		t.client.Advance(n)
	}
	if !t.client.PendingWrite() && !t.client.Done() && !t.client.Failed() {
		buf := make([]byte, 4096)
		n, _, err := t.conn.Read(buf)
		if err != nil && err != ErrWouldBlock {
			return false, err
		}
		if n > 0 {
			t.client.FeedIncoming(buf[:n])
		}
	}
	if t.client.Failed() {
		return false, ErrHandshakeRejected
	}
	if t.client.Done() && !t.client.PendingWrite() {
		t.canPassFds = t.client.fdAgreed
		return true, nil
	}
	return false, nil
}

func (t *StreamTransport) stepServerAuth() (bool, error) {
	if t.server.PendingWrite() {
		out := t.server.TakeOutgoing()
		n, err := t.conn.Write(out, nil)
		if err != nil && err != ErrWouldBlock {
			return false, err
		}
		t.server.Advance(n)
	}
	if !t.server.PendingWrite() && !t.server.Done() {
		buf := make([]byte, 4096)
		n, _, err := t.conn.Read(buf)
		if err != nil && err != ErrWouldBlock {
			return false, err
		}
		if n > 0 {
			t.server.FeedIncoming(buf[:n])
		}
	}
	if t.server.Done() && !t.server.PendingWrite() {
		t.canPassFds = t.server.fdAgreed
		return true, nil
	}
	return false, nil
}

// AttachFds implements Transport: called once the connection confirms
// fd-passing capability with the peer.
func (t *StreamTransport) AttachFds(can bool) { t.canPassFds = can }

// Write implements Transport.
func (t *StreamTransport) Write(msg wire.Message, idx *int) (Result, error) {
	if msg.NumFDs() > 0 && !t.canPassFds {
		return 0, ErrNotSupported
	}
	frame, fds, err := t.codec.Encode(msg)
	if err != nil {
		return 0, err
	}
	start := 0
	if idx != nil {
		start = *idx
	}
	n, err := t.conn.Write(frame[start:], fds)
	if err != nil {
		if err == ErrWouldBlock {
			if idx != nil {
				*idx = start
			}
			return WriteWouldBlock, nil
		}
		return 0, err
	}
	total := start + n
	if idx != nil {
		*idx = total
	}
	if total >= len(frame) {
		return WriteDone, nil
	}
	return WritePartial, nil
}

// Read implements Transport: accumulates bytes into readBuf, peeks the
// fixed header once at least wire.FixedHeaderLen bytes are buffered,
// computes the frame length, and decodes exactly one complete frame.
func (t *StreamTransport) Read() (wire.Message, error) {
	buf := make([]byte, 65536)
	n, fds, err := t.conn.Read(buf)
	if err != nil && err != ErrWouldBlock {
		return nil, err
	}
	if n > 0 {
		t.readBuf = append(t.readBuf, buf[:n]...)
		t.pendingFds = append(t.pendingFds, fds...)
	}
	frameLen, err := wire.PeekFrameLength(t.readBuf)
	if err != nil {
		if err == wire.ErrShortHeader {
			return nil, nil
		}
		return nil, err
	}
	if len(t.readBuf) < frameLen {
		return nil, nil
	}
	frame := t.readBuf[:frameLen]
	msg, err := t.codec.Decode(frame, t.pendingFds)
	if err != nil {
		return nil, err
	}
	// fds are owned by the transport until attached to a message,
	// thereafter by the message (§4.2).
	t.pendingFds = nil
	t.readBuf = append([]byte(nil), t.readBuf[frameLen:]...)
	return msg, nil
}

func (t *StreamTransport) Fd() uintptr { return t.conn.Fd() }

func (t *StreamTransport) Events() PollMask {
	mask := PollIn
	if t.client != nil && t.client.PendingWrite() {
		mask |= PollOut
	}
	if t.server != nil && t.server.PendingWrite() {
		mask |= PollOut
	}
	return mask
}

func (t *StreamTransport) Close() error { return t.conn.Close() }

// GUID returns the peer's GUID learned during the SASL handshake's OK
// line, empty until authentication completes (server role never
// learns one; it presents its own).
func (t *StreamTransport) GUID() string {
	if t.client != nil {
		return t.client.guid
	}
	return ""
}

func (t *StreamTransport) Features() Features {
	return Features{CanPassFds: t.canPassFds, ServerRole: t.serverRole}
}
