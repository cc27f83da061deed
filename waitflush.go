// File: waitflush.go
// Author: momentics <momentics@gmail.com>
//
// Flush and Wait round out the connection's four blocking suspension
// points alongside Process and SendWithReplyAndBlock (§5): "process(),
// send_with_reply_and_block(), wait(), and flush() may block on
// ppoll." Grounded on the same fd/events inquiry Process already
// exposes to an external reactor (§4.6), driven here by a single
// poll(2) call instead of an epoll registration.
package dbus

import (
	"github.com/momentics/go-sd-bus/dbuserr"
	"github.com/momentics/go-sd-bus/reactor"
	"github.com/momentics/go-sd-bus/transport"
)

// Flush blocks until every message queued for send has been written to
// the transport. A no-op returning success if the outgoing queue is
// already empty (§8 "Queue flush idempotence").
func (c *Connection) Flush() error {
	if err := c.checkNotForked(); err != nil {
		return err
	}
	if !c.state.IsOpen() {
		return dbuserr.Wrap(dbuserr.CodeNotConnected, "Flush: not connected", dbuserr.ErrNotConnected)
	}
	for {
		if err := c.flushOutgoing(); err != nil {
			return err
		}
		if c.outgoing.Empty() {
			return nil
		}
		if _, err := pollFd(c.transport.Fd(), transport.PollOut, -1); err != nil {
			c.forceClosedOnTransportError(err)
			return dbuserr.Wrap(dbuserr.CodeTransport, "Flush: poll failed", err)
		}
	}
}

// Wait blocks until the connection's fd becomes ready for whatever it
// currently wants (mirrored from Events) or usec elapses, whichever
// comes first. usec < 0 blocks indefinitely; usec == 0 polls once
// without blocking. It never dispatches; call Process afterward to act
// on what became ready.
func (c *Connection) Wait(usec int64) error {
	if err := c.checkNotForked(); err != nil {
		return err
	}
	if !c.state.IsOpen() {
		return dbuserr.Wrap(dbuserr.CodeNotConnected, "Wait: not connected", dbuserr.ErrNotConnected)
	}

	mask := c.Events()
	var want transport.PollMask
	if mask&reactor.PollIn != 0 {
		want |= transport.PollIn
	}
	if mask&reactor.PollOut != 0 {
		want |= transport.PollOut
	}
	if want == 0 {
		want = transport.PollIn
	}

	timeoutMs := -1
	if usec >= 0 {
		timeoutMs = int(usec / 1000)
	}
	if _, err := pollFd(c.transport.Fd(), want, timeoutMs); err != nil {
		c.forceClosedOnTransportError(err)
		return dbuserr.Wrap(dbuserr.CodeTransport, "Wait: poll failed", err)
	}
	return nil
}
