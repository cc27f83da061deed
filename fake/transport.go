// File: fake/transport.go
// Author: momentics <momentics@gmail.com>
//
// Transport is a fake implementation of transport.Transport backed by
// an in-memory byte pipe, with programmable errors, matching the
// teacher's fake.Transport style (controllable send/recv buffers and
// injectable errors) generalized to framed messages.
package fake

import (
	"sync"

	dtransport "github.com/momentics/go-sd-bus/transport"
	"github.com/momentics/go-sd-bus/wire"
)

// Pipe is a shared in-memory byte channel connecting two Transports,
// standing in for a connected socket pair.
type Pipe struct {
	mu  sync.Mutex
	buf []byte
}

func (p *Pipe) write(b []byte) {
	p.mu.Lock()
	p.buf = append(p.buf, b...)
	p.mu.Unlock()
}

func (p *Pipe) read() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return nil
	}
	b := p.buf
	p.buf = nil
	return b
}

// NewPipePair returns two Transports wired to each other via Codec,
// each already authenticated (SASL is skipped — tests exercise the
// RUNNING pipeline, not the handshake).
func NewPipePair(codec wire.Codec) (*Transport, *Transport) {
	ab := &Pipe{}
	ba := &Pipe{}
	a := &Transport{out: ab, in: ba, codec: codec, features: dtransport.Features{CanPassFds: true}}
	b := &Transport{out: ba, in: ab, codec: codec, features: dtransport.Features{CanPassFds: true}}
	return a, b
}

// Transport is a fake transport.Transport for testing.
type Transport struct {
	mu       sync.Mutex
	out      *Pipe
	in       *Pipe
	readBuf  []byte
	codec    wire.Codec
	closed   bool
	features dtransport.Features
	SendErr  error
	RecvErr  error
	CloseErr error
}

func (t *Transport) Write(msg wire.Message, idx *int) (dtransport.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SendErr != nil {
		return 0, t.SendErr
	}
	if msg.NumFDs() > 0 && !t.features.CanPassFds {
		return 0, dtransport.ErrNotSupported
	}
	frame, _, err := t.codec.Encode(msg)
	if err != nil {
		return 0, err
	}
	t.out.write(frame)
	return dtransport.WriteDone, nil
}

func (t *Transport) Read() (wire.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.RecvErr != nil {
		return nil, t.RecvErr
	}
	t.readBuf = append(t.readBuf, t.in.read()...)
	if len(t.readBuf) < wire.FixedHeaderLen {
		return nil, nil
	}
	var hdr [wire.FixedHeaderLen]byte
	copy(hdr[:], t.readBuf[:wire.FixedHeaderLen])
	frameLen, err := wire.FrameLength(hdr)
	if err != nil {
		return nil, err
	}
	if len(t.readBuf) < frameLen {
		return nil, nil
	}
	frame := t.readBuf[:frameLen]
	msg, err := t.codec.Decode(frame, nil)
	if err != nil {
		return nil, err
	}
	t.readBuf = append([]byte(nil), t.readBuf[frameLen:]...)
	return msg, nil
}

func (t *Transport) Fd() uintptr { return 0 }

func (t *Transport) Events() dtransport.PollMask { return dtransport.PollIn }

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CloseErr != nil {
		return t.CloseErr
	}
	t.closed = true
	return nil
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) Features() dtransport.Features { return t.features }

func (t *Transport) AttachFds(can bool) {
	t.mu.Lock()
	t.features.CanPassFds = can
	t.mu.Unlock()
}
