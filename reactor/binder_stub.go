//go:build !linux
// +build !linux

// File: reactor/binder_stub.go
// Author: momentics <momentics@gmail.com>
//
// Non-Linux platforms have no epoll binder in this module. Callers
// may still drive a Connection manually via Process()/NextTimeoutNanos
// on any platform; only the external-reactor convenience binder is
// Linux-only.
package reactor

import "errors"

// ErrNotSupported is returned by NewBinder on platforms without a
// native epoll backend.
var ErrNotSupported = errors.New("reactor: no binder backend for this platform")

func NewBinder(d Dispatcher) (Binder, error) {
	return nil, ErrNotSupported
}
