// File: send.go
// Author: momentics <momentics@gmail.com>
//
// Send, SendWithReply and SendWithReplyAndBlock (§4.4). Grounded on
// protocol.WSConnection.SendFrame's direct-transport-write-with-
// fallback pattern, generalized to an enqueue-on-backpressure
// discipline plus reply correlation.
package dbus

import (
	"time"

	"github.com/momentics/go-sd-bus/dbuserr"
	"github.com/momentics/go-sd-bus/transport"
	"github.com/momentics/go-sd-bus/wire"
)

// DefaultTimeout is applied when SendWithReply is called with
// usec == 0 (§6).
const DefaultTimeout = 25 * time.Second

// noTimeout disables a deadline, mirroring usec = (uint64_t)-1; any
// smaller value disables it too.
const noTimeout = int64(-1)

// acceptedHeaderVersion is the only D-Bus header protocol version this
// connection negotiates (§6).
const acceptedHeaderVersion = 1

// Send seals and transmits msg, reporting the assigned serial. It
// never blocks: a message that cannot be written immediately is
// enqueued, failing only if the outgoing queue is full (§4.3, §4.4).
// A method-call sent this way has NO_REPLY_EXPECTED set automatically,
// since the caller has no way to observe a reply; use SendWithReply or
// SendWithReplyAndBlock to make a call expecting one.
func (c *Connection) Send(msg wire.Message) (uint32, error) {
	if err := c.checkNotForked(); err != nil {
		return 0, err
	}
	if !c.state.IsOpen() {
		return 0, dbuserr.Wrap(dbuserr.CodeNotConnected, "Send: not connected", dbuserr.ErrNotConnected)
	}
	return c.sendLocked(msg, false)
}

// sendLocked implements the shared seal+enqueue path used by Send,
// SendWithReply, and internal builtin replies. wantReply is false for
// fire-and-forget sends, which forces NO_REPLY_EXPECTED on a
// method-call (§4.4 step 2).
func (c *Connection) sendLocked(msg wire.Message, wantReply bool) (uint32, error) {
	if msg.NumFDs() > 0 && !c.caps.CanPassFds {
		return 0, dbuserr.Wrap(dbuserr.CodeConfiguration, "Send: fd passing not negotiated", dbuserr.ErrFdsNotAllowed)
	}
	if msg.Version() > acceptedHeaderVersion {
		return 0, dbuserr.New(dbuserr.CodeProtocol, "Send: message header version newer than negotiated")
	}
	if !wantReply && msg.Type() == wire.TypeMethodCall {
		msg.SetNoReplyExpected(true)
	}

	serial := c.nextSerial()
	if err := msg.Seal(serial); err != nil {
		return 0, dbuserr.Wrap(dbuserr.CodeProtocol, "Send: seal failed", err)
	}

	if (c.state == StateRunning || c.state == StateHello) && c.outgoing.Empty() {
		idx := 0
		res, err := c.transport.Write(msg, &idx)
		if err != nil {
			c.forceClosedOnTransportError(err)
			return 0, dbuserr.Wrap(dbuserr.CodeTransport, "Send: transport write failed", err)
		}
		switch res {
		case transport.WriteDone:
			c.Counters.OnSent(msg.BodySize())
			msg.Unref()
			return serial, nil
		case transport.WritePartial:
			c.outgoing.PushFrontPartial(msg, idx)
			return serial, nil
		case transport.WriteWouldBlock:
			if c.outgoing.Full() {
				return 0, dbuserr.Wrap(dbuserr.CodeResourceExhausted, "Send: no buffer space", dbuserr.ErrQueueFull)
			}
			c.outgoing.PushBack(msg)
			return serial, nil
		}
	}

	if c.outgoing.Full() {
		return 0, dbuserr.Wrap(dbuserr.CodeResourceExhausted, "Send: no buffer space", dbuserr.ErrQueueFull)
	}
	c.outgoing.PushBack(msg)
	return serial, nil
}

func (c *Connection) nextSerial() uint32 {
	c.sendSerial++
	return c.sendSerial
}

// ReplyCallback receives the reply message: a method-return, a
// method-error, or a synthesized NoReply timeout error.
type ReplyCallback func(reply wire.Message)

// SendWithReply sends a method-call and registers cb to run when its
// reply arrives or its deadline expires (§4.4). usec == 0 applies
// DefaultTimeout; usec < 0 disables the deadline.
func (c *Connection) SendWithReply(msg wire.Message, cb ReplyCallback, usec int64) (uint32, error) {
	if err := c.checkNotForked(); err != nil {
		return 0, err
	}
	if !c.state.IsOpen() {
		return 0, dbuserr.Wrap(dbuserr.CodeNotConnected, "SendWithReply: not connected", dbuserr.ErrNotConnected)
	}
	if msg.Type() != wire.TypeMethodCall {
		return 0, dbuserr.New(dbuserr.CodeConfiguration, "SendWithReply: message is not a method call")
	}
	if msg.Flags()&wire.FlagNoReplyExpected != 0 {
		return 0, dbuserr.New(dbuserr.CodeConfiguration, "SendWithReply: NO_REPLY_EXPECTED is set")
	}

	deadline := c.deadlineFor(usec)

	// Reserve the serial before sealing so the pending record can be
	// inserted before send() hands the message to the transport.
	serial := c.sendSerial + 1
	c.pending.Add(serial, func(reply any) {
		cb(reply.(wire.Message))
	}, deadline)
	c.pendingCalls[serial] = msg

	got, err := c.sendLocked(msg, true)
	if err != nil {
		c.pending.Remove(serial)
		delete(c.pendingCalls, serial)
		return 0, err
	}
	return got, nil
}

func (c *Connection) deadlineFor(usec int64) int64 {
	if usec <= noTimeout {
		return 0
	}
	d := DefaultTimeout
	if usec > 0 {
		d = time.Duration(usec) * time.Microsecond
	}
	return c.now().Add(d).UnixNano()
}

// SendWithReplyCancel removes a pending call so a reply that arrives
// later is silently discarded (§5).
func (c *Connection) SendWithReplyCancel(serial uint32) {
	c.pending.Remove(serial)
	delete(c.pendingCalls, serial)
}

func (c *Connection) now() time.Time {
	if c.nowFunc != nil {
		return c.nowFunc()
	}
	return time.Now()
}

// SendWithReplyAndBlock sends a method call and spins a local loop that
// reads directly from the transport, bypassing the receive queue and
// the dispatch pipeline for its own reply (§4.4, §9). Any other inbound
// message it observes while waiting is pushed onto the receive queue,
// preserving arrival order, and left there for a later Process() call
// to run through filters/matches/object-dispatch — the synchronous
// wait never serves them itself (§9 Open Question). It must not be
// called re-entrantly from a dispatch callback.
func (c *Connection) SendWithReplyAndBlock(msg wire.Message, usec int64) (wire.Message, error) {
	if err := c.checkNotForked(); err != nil {
		return nil, err
	}
	if !c.state.IsOpen() {
		return nil, dbuserr.Wrap(dbuserr.CodeNotConnected, "SendWithReplyAndBlock: not connected", dbuserr.ErrNotConnected)
	}
	if c.processing {
		return nil, dbuserr.Wrap(dbuserr.CodeInternal, "SendWithReplyAndBlock: dispatch already in progress", dbuserr.ErrBusy)
	}
	if msg.Type() != wire.TypeMethodCall {
		return nil, dbuserr.New(dbuserr.CodeConfiguration, "SendWithReplyAndBlock: message is not a method call")
	}
	if msg.Flags()&wire.FlagNoReplyExpected != 0 {
		return nil, dbuserr.New(dbuserr.CodeConfiguration, "SendWithReplyAndBlock: NO_REPLY_EXPECTED is set")
	}

	c.processing = true
	defer func() { c.processing = false }()

	serial, err := c.sendLocked(msg, true)
	if err != nil {
		return nil, err
	}

	deadline := c.deadlineFor(usec)
	backlog := c.incoming.Len()
	for {
		if err := c.flushOutgoing(); err != nil {
			return nil, err
		}

		next, err := c.nextRawInbound(&backlog)
		if err != nil {
			return nil, err
		}
		if next == nil {
			if deadline != 0 && c.now().UnixNano() >= deadline {
				return nil, dbuserr.Wrap(dbuserr.CodeTimeout, "SendWithReplyAndBlock: timed out waiting for reply", dbuserr.ErrTimeout)
			}
			time.Sleep(time.Millisecond)
			continue
		}

		isReply := (next.Type() == wire.TypeMethodReturn || next.Type() == wire.TypeMethodError) && next.ReplySerial() == serial
		if !isReply {
			if !c.incoming.Push(next) {
				return nil, dbuserr.New(dbuserr.CodeResourceExhausted, "SendWithReplyAndBlock: incoming queue overrun")
			}
			continue
		}

		c.releaseIfBorrowed(next)
		if next.Type() == wire.TypeMethodError {
			return nil, dbuserr.New(dbuserr.CodeProtocol, "SendWithReplyAndBlock: "+next.ErrorName())
		}
		return next, nil
	}
}

// nextRawInbound returns the next inbound message without running it
// through dispatch: whatever is already queued from a prior Process()
// call first (preserving arrival order), else one fresh read straight
// off the transport. *backlog counts the queued messages not yet
// examined; messages pushed back onto the queue are not popped again.
// Returns (nil, nil) if nothing is available yet.
func (c *Connection) nextRawInbound(backlog *int) (wire.Message, error) {
	if *backlog > 0 {
		*backlog--
		if v, ok := c.incoming.Pop(); ok {
			return v.(wire.Message), nil
		}
		*backlog = 0
	}
	msg, err := c.transport.Read()
	if err != nil {
		c.forceClosedOnTransportError(err)
		return nil, dbuserr.Wrap(dbuserr.CodeTransport, "SendWithReplyAndBlock: read failed", err)
	}
	if msg != nil {
		c.Counters.OnReceived(msg.BodySize())
	}
	return msg, nil
}
