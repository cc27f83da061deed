// File: lifecycle.go
// Author: momentics <momentics@gmail.com>
//
// Close and the event-loop inquiries (§4.6, §4.7), grounded on
// protocol.WSConnection.Close's once-only teardown (atomic CAS guard,
// hook fan-out, resource release) generalized from a single done
// channel to the queue/pending-table drain this connection owns.
package dbus

import (
	"github.com/momentics/go-sd-bus/reactor"
	"github.com/momentics/go-sd-bus/transport"
	"github.com/momentics/go-sd-bus/wire"
)

// Close transitions the connection to CLOSED, runs registered close
// hooks, drops queued messages and pending replies without invoking
// their callbacks, and releases the transport. Idempotent (§4.7, §5).
func (c *Connection) Close() error {
	if err := c.checkNotForked(); err != nil {
		return err
	}
	if !c.markClosedFlag() {
		return nil
	}
	c.state = StateClosed

	for _, h := range c.closeHooks {
		h()
	}

	c.pending.Clear()
	c.pendingCalls = make(map[uint32]wire.Message)
	c.outgoing.Drain()
	for {
		v, ok := c.incoming.Pop()
		if !ok {
			break
		}
		c.releaseIfBorrowed(v.(wire.Message))
	}

	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

// Events implements reactor.Dispatcher, deriving the desired poll
// mask from connection state (§4.6).
func (c *Connection) Events() reactor.PollMask {
	switch c.state {
	case StateOpening:
		return reactor.PollOut
	case StateAuthenticating:
		mask := reactor.PollIn
		if st, ok := c.transport.(*transport.StreamTransport); ok && st.Events()&transport.PollOut != 0 {
			mask |= reactor.PollOut
		}
		return mask
	case StateRunning, StateHello:
		var mask reactor.PollMask
		if c.incoming.Len() == 0 {
			mask |= reactor.PollIn
		}
		if !c.outgoing.Empty() {
			mask |= reactor.PollOut
		}
		return mask
	default:
		return 0
	}
}

// NextTimeoutNanos implements reactor.Dispatcher (§4.6): RUNNING/HELLO
// with a non-empty receive queue wants immediate dispatch; otherwise
// the head of the deadline queue; AUTHENTICATING reports its own
// handshake deadline; anything else has no timeout.
func (c *Connection) NextTimeoutNanos() (int64, bool) {
	switch c.state {
	case StateRunning, StateHello:
		if c.incoming.Len() > 0 {
			return 0, true
		}
		return c.pending.NextDeadline()
	case StateAuthenticating:
		if c.authDeadline != 0 {
			return c.authDeadline, true
		}
		return 0, false
	default:
		return 0, false
	}
}
