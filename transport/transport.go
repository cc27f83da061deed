// File: transport/transport.go
// Package transport owns the fds, performs non-blocking reads/writes,
// message framing, and the SASL handshake (§4.2). Grounded on
// api.Transport/api.NetConn (Send/Recv/Close/Features contract) and
// internal/transport.TransportWrapper's swappable-implementation
// facade, generalized from websocket byte batches to D-Bus messages
// framed via an injected wire.Codec.
//
// Author: momentics <momentics@gmail.com>
package transport

import (
	"github.com/momentics/go-sd-bus/wire"
)

// Result classifies the outcome of a non-blocking Write.
type Result int

const (
	WriteDone Result = iota
	WritePartial
	WriteWouldBlock
)

// Features describes what a transport variant and its authenticated
// peer support, mirroring internal/transport.feature_detect's
// capability struct.
type Features struct {
	CanPassFds bool
	IsKernel   bool
	ServerRole bool
}

// PollMask mirrors the poll(2) event bits the connection's event-loop
// integration needs (§4.6).
type PollMask uint32

const (
	PollIn  PollMask = 1 << 0
	PollOut PollMask = 1 << 1
)

// Transport is the common contract implemented by the stream
// (unix/tcp/exec) and kernel variants (§4.2).
type Transport interface {
	// Write attempts to send msg. On WritePartial, *idx holds the
	// number of bytes already written so a resumed call does not
	// resend them; on WriteDone, *idx is unused by the caller.
	Write(msg wire.Message, idx *int) (Result, error)

	// Read returns the next complete message, or (nil, nil) if no
	// full frame is currently available.
	Read() (wire.Message, error)

	// Fd returns the transport's pollable file descriptor.
	Fd() uintptr

	// Events reports which poll events the transport currently wants,
	// e.g. POLLOUT while an authentication reply is still queued.
	Events() PollMask

	Close() error
	Features() Features

	// AttachFds is called by the connection as soon as SASL
	// authentication completes, with the fd-passing capability the
	// handshake negotiated. It is not deferred until a HELLO reply
	// arrives, and connections over a kernel transport never call it.
	AttachFds(can bool)
}
