// File: process.go
// Author: momentics <momentics@gmail.com>
//
// Process drives one dispatch pass: authentication/HELLO progression,
// timeout sweep, outgoing flush, then the inbound pipeline (§4.5).
// Grounded on EventReactor.Wait's single-pass "do everything that is
// ready, then return" loop body, adapted from an epoll readiness list
// to the connection's queue-and-state-machine model.
package dbus

import (
	"strings"
	"time"

	"github.com/momentics/go-sd-bus/dbuserr"
	"github.com/momentics/go-sd-bus/transport"
	"github.com/momentics/go-sd-bus/wire"
)

const (
	ifaceDBus     = "org.freedesktop.DBus"
	ifacePeer     = "org.freedesktop.DBus.Peer"
	pathDBus      = "/"
	memberHello   = "Hello"
	memberPing    = "Ping"
	memberGetMID  = "GetMachineId"
)

// Process runs one full dispatch pass. It is reentrancy-guarded: a
// filter or the object dispatcher calling back into Process fails
// fast with ErrBusy rather than corrupting the pipeline (§4.5, §9).
func (c *Connection) Process() error {
	if err := c.checkNotForked(); err != nil {
		return err
	}
	if c.state == StateClosed {
		return dbuserr.Wrap(dbuserr.CodeNotConnected, "Process: connection closed", dbuserr.ErrClosed)
	}
	if c.processing {
		return dbuserr.Wrap(dbuserr.CodeInternal, "Process: dispatch already in progress", dbuserr.ErrBusy)
	}
	c.processing = true
	defer func() { c.processing = false }()

	switch c.state {
	case StateOpening:
		return c.beginAuthOrRun()
	case StateAuthenticating:
		return c.stepAuthentication()
	}

	// RUNNING/HELLO: timeout sweep short-circuits the rest of this call
	// on the first fired deadline (§4.5 step 1).
	if c.sweepOneTimeout() {
		c.Counters.SetQueueDepths(c.pending.Len(), c.outgoing.Len(), c.incoming.Len())
		return nil
	}

	if err := c.flushOutgoing(); err != nil {
		return err
	}

	if err := c.dispatchNext(); err != nil {
		return err
	}

	c.Counters.SetQueueDepths(c.pending.Len(), c.outgoing.Len(), c.incoming.Len())
	return nil
}

// AuthTimeout bounds how long the SASL handshake may remain
// incomplete before NextTimeoutNanos reports it as due (§4.6).
const AuthTimeout = 30 * time.Second

// beginAuthOrRun transitions out of OPENING into AUTHENTICATING. Open
// already resolves kernel transports straight to RUNNING (§4.2), so a
// Process call only ever observes OPENING for a stream transport.
func (c *Connection) beginAuthOrRun() error {
	c.state = StateAuthenticating
	c.authDeadline = c.now().Add(AuthTimeout).UnixNano()
	return nil
}

func (c *Connection) stepAuthentication() error {
	if c.authDeadline != 0 && c.now().UnixNano() >= c.authDeadline {
		c.forceClosedOnTransportError(dbuserr.ErrTimeout)
		return dbuserr.Wrap(dbuserr.CodeTimeout, "Process: SASL handshake timed out", dbuserr.ErrTimeout)
	}
	st, ok := c.transport.(*transport.StreamTransport)
	if !ok {
		// A fake or custom Transport with no SASL step is assumed
		// pre-authenticated.
		return c.finishAuthentication()
	}
	done, err := st.StepAuth()
	if err != nil {
		c.forceClosedOnTransportError(err)
		return dbuserr.Wrap(dbuserr.CodeTransport, "Process: SASL handshake failed", err)
	}
	if !done {
		return nil
	}
	return c.finishAuthentication()
}

func (c *Connection) finishAuthentication() error {
	c.authDeadline = 0
	c.caps.CanPassFds = c.transport.Features().CanPassFds
	c.transport.AttachFds(c.caps.CanPassFds)

	if !c.busClient {
		c.peerGUID = guidFromTransport(c.transport)
		c.state = StateRunning
		return nil
	}
	if c.factory == nil {
		return dbuserr.New(dbuserr.CodeConfiguration, "Process: bus-client requires WithFactory to send Hello")
	}
	call, err := c.factory.NewMethodCall(ifaceDBus, pathDBus, ifaceDBus, memberHello)
	if err != nil {
		return dbuserr.Wrap(dbuserr.CodeProtocol, "Process: failed to build Hello call", err)
	}
	serial, err := c.sendLocked(call, true)
	if err != nil {
		return dbuserr.Wrap(dbuserr.CodeTransport, "Process: failed to send Hello", err)
	}
	c.helloSerial = serial
	c.helloPending = true
	c.state = StateHello
	return nil
}

// sweepOneTimeout fires the single earliest-expired pending call, if
// any, with a synthesized NoReply error (§4.5 step 1). Reports whether
// it fired one, so the caller can short-circuit the rest of the pass.
func (c *Connection) sweepOneTimeout() bool {
	if c.factory == nil {
		return false
	}
	serial, cb, ok := c.pending.PeekExpired(c.now().UnixNano())
	if !ok {
		return false
	}
	c.Counters.OnTimeout()
	call := c.pendingCalls[serial]
	delete(c.pendingCalls, serial)
	errMsg, err := c.factory.NewError(call, wire.ErrorNoReply, "Method call timed out")
	if err != nil {
		return true
	}
	cb(errMsg)
	return true
}

// flushOutgoing retries writing the head of the outgoing queue until
// it blocks or the queue drains (§4.3).
func (c *Connection) flushOutgoing() error {
	for {
		msg, written, ok := c.outgoing.Front()
		if !ok {
			return nil
		}
		idx := written
		res, err := c.transport.Write(msg, &idx)
		if err != nil {
			c.forceClosedOnTransportError(err)
			return dbuserr.Wrap(dbuserr.CodeTransport, "Process: outgoing write failed", err)
		}
		switch res {
		case transport.WriteDone:
			c.Counters.OnSent(msg.BodySize())
			c.outgoing.PopFront()
		case transport.WritePartial:
			c.outgoing.AdvanceFront(idx - written)
			return nil
		case transport.WriteWouldBlock:
			return nil
		}
	}
}

// dispatchNext takes the next message from the receive queue, reading
// from the transport to fill it if empty, and dispatches at most that
// one message (§4.5 step 3, "at most one message consumed per call").
func (c *Connection) dispatchNext() error {
	if c.incoming.Len() == 0 {
		if err := c.fillIncoming(); err != nil {
			return err
		}
	}
	v, ok := c.incoming.Pop()
	if !ok {
		return nil
	}
	c.dispatchOne(v.(wire.Message))
	return nil
}

// fillIncoming drains whatever complete frames the transport currently
// has buffered into the receive queue, up to its capacity.
func (c *Connection) fillIncoming() error {
	for !c.incoming.Full() {
		msg, err := c.transport.Read()
		if err != nil {
			c.forceClosedOnTransportError(err)
			return dbuserr.Wrap(dbuserr.CodeTransport, "Process: inbound read failed", err)
		}
		if msg == nil {
			return nil
		}
		c.Counters.OnReceived(msg.BodySize())
		if !c.incoming.Push(msg) {
			return dbuserr.New(dbuserr.CodeResourceExhausted, "Process: incoming queue overrun")
		}
	}
	return nil
}

// dispatchOne runs one inbound message through the ordered pipeline:
// HELLO gate, reply correlation, filters, matches, built-in peer
// interface, object dispatch, UnknownObject fallback (§4.5 steps 4-9).
func (c *Connection) dispatchOne(msg wire.Message) {
	defer c.releaseIfBorrowed(msg)

	if c.state == StateHello && c.helloPending {
		isHelloReply := (msg.Type() == wire.TypeMethodReturn || msg.Type() == wire.TypeMethodError) && msg.ReplySerial() == c.helloSerial
		if !isHelloReply {
			c.forceClosedOnProtocolError(dbuserr.New(dbuserr.CodeProtocol, "Process: first message after auth was not the Hello reply"))
			return
		}
		if msg.Type() == wire.TypeMethodError {
			c.helloPending = false
			c.forceClosedOnProtocolError(dbuserr.New(dbuserr.CodeProtocol, "Process: Hello call was rejected: "+msg.ErrorName()))
			return
		}
		c.completeHello(msg)
		return
	}

	if msg.Type() == wire.TypeMethodReturn || msg.Type() == wire.TypeMethodError {
		if cb, ok := c.pending.Remove(msg.ReplySerial()); ok {
			delete(c.pendingCalls, msg.ReplySerial())
			cb(msg)
			return
		}
	}

	if c.filters.Run(msg) {
		return
	}
	if c.matches.Run(msg) {
		return
	}
	if msg.Type() != wire.TypeMethodCall {
		return
	}
	if c.handleBuiltinPeer(msg) {
		return
	}
	if c.objectDispatcher != nil && c.objectDispatcher(msg) {
		return
	}
	c.replyUnknownObject(msg)
}

func (c *Connection) completeHello(msg wire.Message) {
	c.helloPending = false
	bs, ok := msg.(wire.BodyStringer)
	if !ok {
		c.forceClosedOnProtocolError(dbuserr.New(dbuserr.CodeProtocol, "Process: Hello reply has no string body"))
		return
	}
	name, err := bs.BodyString()
	if err != nil || !strings.HasPrefix(name, ":") {
		c.forceClosedOnProtocolError(dbuserr.New(dbuserr.CodeProtocol, "Process: Hello reply did not carry a valid unique name"))
		return
	}
	c.uniqueName = name
	c.peerGUID = firstNonEmpty(c.peerGUID, guidFromTransport(c.transport))
	c.state = StateRunning
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// guidFromTransport extracts the peer GUID learned during the SASL
// handshake, if the transport is a stream variant (§3, SPEC_FULL's
// bus_hello_handler extension).
func guidFromTransport(t transport.Transport) string {
	if st, ok := t.(*transport.StreamTransport); ok {
		return st.GUID()
	}
	return ""
}

// releaseIfBorrowed returns a kernel-transport message's pool slot
// once fully dispatched (§4.7).
func (c *Connection) releaseIfBorrowed(msg wire.Message) {
	if kt, ok := c.transport.(*transport.KernelTransport); ok {
		kt.ReleaseMessage(msg)
	}
	msg.Unref()
}

func (c *Connection) forceClosedOnTransportError(err error) {
	c.lastErr = err
	_ = c.Close()
}

func (c *Connection) forceClosedOnProtocolError(err error) {
	c.lastErr = err
	_ = c.Close()
}
