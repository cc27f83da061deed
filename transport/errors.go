// File: transport/errors.go
// Author: momentics <momentics@gmail.com>
package transport

import "errors"

var (
	// ErrWouldBlock is returned internally by a raw connection's
	// non-blocking Read when no data is currently available.
	ErrWouldBlock = errors.New("transport: would block")

	// ErrNotSupported is returned by transport constructors and by
	// fd-carrying Write calls when the requested capability or
	// platform backend isn't available.
	ErrNotSupported = errors.New("transport: not supported")

	// ErrHandshakeRejected is returned when the peer rejects SASL auth.
	ErrHandshakeRejected = errors.New("transport: SASL handshake rejected")
)
