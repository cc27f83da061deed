//go:build linux
// +build linux

// File: wait_linux.go
// Author: momentics <momentics@gmail.com>
//
// pollFd backs Wait/Flush's blocking suspension points (§5) with a
// single poll(2) call, mirroring reactor/binder_linux.go's epoll wait
// but for the one-shot, no-registration case those two methods need.
package dbus

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/go-sd-bus/transport"
)

func pollFd(fd uintptr, events transport.PollMask, timeoutMs int) (bool, error) {
	var pe int16
	if events&transport.PollIn != 0 {
		pe |= unix.POLLIN
	}
	if events&transport.PollOut != 0 {
		pe |= unix.POLLOUT
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: pe}}
	for {
		n, err := unix.Poll(fds, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return false, err
		}
		return n > 0, nil
	}
}
