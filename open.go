// File: open.go
// Author: momentics <momentics@gmail.com>
//
// Open transitions the connection out of UNSET, either by dialing the
// configured address or by adopting an already-installed transport
// (WithTransport), and hands remaining negotiation to Process (§4.5).
package dbus

import (
	"github.com/momentics/go-sd-bus/dbuserr"
	"github.com/momentics/go-sd-bus/transport"
)

// Open begins connecting. It does not block on authentication or
// HELLO; call Process repeatedly (directly or via a reactor.Binder)
// to drive the connection to RUNNING.
func (c *Connection) Open() error {
	if err := c.checkNotForked(); err != nil {
		return err
	}
	if c.state != StateUnset {
		return dbuserr.New(dbuserr.CodeConfiguration, "Open: connection already opened")
	}
	if c.factory == nil {
		return dbuserr.New(dbuserr.CodeConfiguration, "Open: no message factory installed (WithFactory)")
	}
	if c.busClient && c.serverMode {
		return dbuserr.New(dbuserr.CodeConfiguration, "Open: bus-client and server-mode are mutually exclusive")
	}

	if c.transport == nil {
		if !c.addrSet {
			return dbuserr.New(dbuserr.CodeConfiguration, "Open: no address or transport configured")
		}
		tr, err := c.dial()
		if err != nil {
			c.lastErr = err
			return dbuserr.Wrap(dbuserr.CodeTransport, "Open: dial failed", err)
		}
		c.transport = tr
	}

	c.state = StateOpening

	if kt, ok := c.transport.(*transport.KernelTransport); ok {
		// Kernel transport: no auth, no HELLO (§4.2).
		c.uniqueName = kt.UniqueName()
		c.state = StateRunning
	}
	return nil
}

func (c *Connection) dial() (transport.Transport, error) {
	// Real dialing is delegated to transport.DialClient/AcceptServer;
	// the address kind determines the concrete backend.
	if c.serverMode {
		return nil, dbuserr.New(dbuserr.CodeConfiguration, "Open: server mode requires WithTransport(AcceptServer(...))")
	}
	if c.isKernel {
		return nil, dbuserr.New(dbuserr.CodeConfiguration, "Open: kernel: address requires WithTransport(NewKernelTransport(pool)), not address dialing")
	}
	if c.codec == nil {
		return nil, dbuserr.New(dbuserr.CodeConfiguration, "Open: no wire codec installed (WithCodec)")
	}
	return transport.DialClient(c.addr, c.codec, c.anonymousAuth, c.negotiateFds, externalAuthID())
}
