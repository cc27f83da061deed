//go:build linux
// +build linux

// File: reactor/binder_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll binder. Grounded directly on reactor/epoll_reactor.go's
// EpollCreate1/EpollCtl/EpollWait loop; generalized from a per-fd
// callback map to a single dispatcher whose event mask and deadline
// are re-synced before every wait call (the "prepare hook" of §4.6).
package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

type epollBinder struct {
	epfd int
	fd   int
	d    Dispatcher
}

// NewBinder creates an epoll-backed Binder for d.
func NewBinder(d Dispatcher) (Binder, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll create: %w", err)
	}
	b := &epollBinder{epfd: epfd, fd: int(d.Fd()), d: d}
	if err := b.sync(); err != nil {
		unix.Close(epfd)
		return nil, err
	}
	return b, nil
}

func (b *epollBinder) sync() error {
	var ev unix.EpollEvent
	mask := b.d.Events()
	if mask&PollIn != 0 {
		ev.Events |= unix.EPOLLIN
	}
	if mask&PollOut != 0 {
		ev.Events |= unix.EPOLLOUT
	}
	ev.Fd = int32(b.fd)
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, b.fd, &ev); err != nil {
		if err == unix.ENOENT {
			return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, b.fd, &ev)
		}
		return fmt.Errorf("reactor: epoll ctl: %w", err)
	}
	return nil
}

func (b *epollBinder) Run(stop <-chan struct{}) error {
	events := make([]unix.EpollEvent, 4)
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		if err := b.sync(); err != nil {
			return err
		}
		timeout := b.timeoutMs()
		n, err := unix.EpollWait(b.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll wait: %w", err)
		}
		if n == 0 && timeout < 0 {
			continue
		}
		if err := b.d.Process(); err != nil {
			return err
		}
	}
}

func (b *epollBinder) timeoutMs() int {
	deadline, ok := b.d.NextTimeoutNanos()
	if !ok {
		return -1
	}
	now := time.Now().UnixNano()
	if deadline <= now {
		return 0
	}
	ms := (deadline - now) / int64(time.Millisecond)
	if ms > int64(^uint(0)>>1) {
		ms = int64(^uint(0) >> 1)
	}
	return int(ms)
}

func (b *epollBinder) Close() error {
	return unix.Close(b.epfd)
}
