// File: transport/dial.go
// Author: momentics <momentics@gmail.com>
//
// Platform-independent facade over the per-OS raw connection dialers,
// mirroring internal/transport/transport.go's TransportWrapper: the
// public constructor is the same on every platform, only the backing
// implementation differs.
package transport

import (
	"fmt"

	"github.com/momentics/go-sd-bus/dbusaddr"
	"github.com/momentics/go-sd-bus/wire"
)

// DialClient opens a client-role stream transport for addr and begins
// driving the SASL handshake on the caller's behalf via StepAuth.
func DialClient(addr dbusaddr.Address, codec wire.Codec, anonymous, wantFds bool, uidHex string) (*StreamTransport, error) {
	conn, err := dialByKind(addr)
	if err != nil {
		return nil, err
	}
	return NewClientStreamTransport(conn, codec, anonymous, wantFds, uidHex), nil
}

// AcceptServer wraps an already-accepted connection fd for the server
// role, driving the server side of SASL via StepAuth.
func AcceptServer(conn rawConn, codec wire.Codec, guid string, wantFds bool) *StreamTransport {
	return NewServerStreamTransport(conn, codec, guid, wantFds)
}

func dialByKind(addr dbusaddr.Address) (rawConn, error) {
	switch addr.Kind {
	case dbusaddr.KindUnix, dbusaddr.KindContainer:
		return dialUnix(addr)
	case dbusaddr.KindTCP:
		return dialTCP(addr)
	case dbusaddr.KindUnixExec:
		return dialUnixExec(addr)
	default:
		return nil, fmt.Errorf("transport: unsupported address kind %v", addr.Kind)
	}
}
