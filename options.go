// File: options.go
// Author: momentics <momentics@gmail.com>
//
// Functional options for Connection construction, grounded on
// server.ServerOption's `func(*Server)` pattern, adapted to return an
// error so each option can enforce the UNSET-state configuration gate
// (§3 invariants) uniformly.
package dbus

import (
	"time"

	"github.com/momentics/go-sd-bus/dbusaddr"
	"github.com/momentics/go-sd-bus/dbuserr"
	"github.com/momentics/go-sd-bus/transport"
	"github.com/momentics/go-sd-bus/wire"
)

// Option customizes Connection construction.
type Option func(*Connection) error

// WithAddress sets the connection's transport target.
func WithAddress(addr dbusaddr.Address) Option {
	return func(c *Connection) error {
		if err := c.requireUnset("WithAddress"); err != nil {
			return err
		}
		c.addr = addr
		c.addrSet = true
		c.isKernel = addr.Kind == dbusaddr.KindKernel
		return nil
	}
}

// WithBusClient marks the connection as a bus client, meaning it must
// complete the HELLO handshake before entering RUNNING (§3).
func WithBusClient() Option {
	return func(c *Connection) error {
		if err := c.requireUnset("WithBusClient"); err != nil {
			return err
		}
		if c.serverMode {
			return dbuserr.New(dbuserr.CodeConfiguration, "WithBusClient: mutually exclusive with WithServerMode")
		}
		c.busClient = true
		return nil
	}
}

// WithServerMode marks the connection as the accepting side of a
// stream transport, presenting guid during the SASL handshake.
func WithServerMode(guid string) Option {
	return func(c *Connection) error {
		if err := c.requireUnset("WithServerMode"); err != nil {
			return err
		}
		if c.busClient {
			return dbuserr.New(dbuserr.CodeConfiguration, "WithServerMode: mutually exclusive with WithBusClient")
		}
		c.serverMode = true
		c.serverGUID = guid
		return nil
	}
}

// WithAnonymousAuth requests ANONYMOUS SASL authentication instead of
// EXTERNAL peer-credential authentication.
func WithAnonymousAuth() Option {
	return func(c *Connection) error {
		if err := c.requireUnset("WithAnonymousAuth"); err != nil {
			return err
		}
		c.anonymousAuth = true
		return nil
	}
}

// WithNegotiateFds requests UNIX_FD passing negotiation during the
// SASL handshake.
func WithNegotiateFds() Option {
	return func(c *Connection) error {
		if err := c.requireUnset("WithNegotiateFds"); err != nil {
			return err
		}
		c.negotiateFds = true
		return nil
	}
}

// WithFactory installs the message factory used to synthesize HELLO,
// built-in peer replies, and timeout/protocol error messages. Required
// before Open.
func WithFactory(f wire.Factory) Option {
	return func(c *Connection) error {
		if err := c.requireUnset("WithFactory"); err != nil {
			return err
		}
		c.factory = f
		return nil
	}
}

// WithCodec installs the wire codec the stream transport uses to
// frame outgoing messages and decode incoming ones. Required before
// Open unless WithTransport supplies an already-wired transport.
func WithCodec(codec wire.Codec) Option {
	return func(c *Connection) error {
		if err := c.requireUnset("WithCodec"); err != nil {
			return err
		}
		c.codec = codec
		return nil
	}
}

// WithTransport installs an already-constructed transport (e.g. one
// returned by a server Accept loop, or a fake for tests), skipping
// address-based dialing in Open.
func WithTransport(t transport.Transport) Option {
	return func(c *Connection) error {
		if err := c.requireUnset("WithTransport"); err != nil {
			return err
		}
		c.transport = t
		return nil
	}
}

// WithObjectDispatcher installs the single external entry point that
// receives a method call once the built-in peer interface has passed
// on it (§1, §4.5 step 9). A false return means "no object at this
// path", triggering the UnknownObject fallback.
func WithObjectDispatcher(fn func(msg wire.Message) bool) Option {
	return func(c *Connection) error {
		if err := c.requireUnset("WithObjectDispatcher"); err != nil {
			return err
		}
		c.objectDispatcher = fn
		return nil
	}
}

// WithClock overrides the time source used for method-call deadlines,
// for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Connection) error {
		if err := c.requireUnset("WithClock"); err != nil {
			return err
		}
		c.nowFunc = now
		return nil
	}
}
