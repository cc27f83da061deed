//go:build !linux
// +build !linux

// File: wait_stub.go
// Author: momentics <momentics@gmail.com>
package dbus

import (
	"errors"

	"github.com/momentics/go-sd-bus/transport"
)

// ErrWaitNotSupported is returned by Wait/Flush on platforms without a
// native poll(2) backend.
var ErrWaitNotSupported = errors.New("dbus: Wait/Flush have no poll backend for this platform")

func pollFd(fd uintptr, events transport.PollMask, timeoutMs int) (bool, error) {
	return false, ErrWaitNotSupported
}
