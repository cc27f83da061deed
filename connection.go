// File: connection.go
// Author: momentics <momentics@gmail.com>
//
// Connection is the root object (§3). Grounded on protocol.WSConnection's
// field layout (transport, buffer pool, atomic counters, done channel,
// mutex-guarded handler) generalized from a channel-driven duplex
// websocket session to a queue-and-state-machine model, with
// api.Error's structured-error shape (dbuserr.Error) for the taxonomy
// in §7.
package dbus

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/momentics/go-sd-bus/dbgctl"
	"github.com/momentics/go-sd-bus/dbusaddr"
	"github.com/momentics/go-sd-bus/dbuserr"
	"github.com/momentics/go-sd-bus/internal/dispatch"
	"github.com/momentics/go-sd-bus/internal/pending"
	"github.com/momentics/go-sd-bus/internal/queues"
	"github.com/momentics/go-sd-bus/transport"
	"github.com/momentics/go-sd-bus/wire"
)

// Capabilities records the peer capabilities negotiated during
// authentication (§3).
type Capabilities struct {
	CanPassFds    bool
	AttachComm    bool
	AttachExe     bool
	AttachCmdline bool
	AttachCgroup  bool
	AttachCaps    bool
	AttachSELinux bool
	AttachAudit   bool
}

// Connection is a single-owner, single-threaded D-Bus connection
// (§3, §5).
type Connection struct {
	addr      dbusaddr.Address
	addrSet   bool
	transport transport.Transport
	factory   wire.Factory
	codec     wire.Codec

	state State

	busClient     bool
	serverMode    bool
	serverGUID    string
	anonymousAuth bool
	negotiateFds  bool
	isKernel      bool

	caps Capabilities

	uniqueName   string
	peerGUID     string
	sendSerial   uint32
	helloSerial  uint32
	helloPending bool

	pid int

	outgoing *queues.Outgoing
	incoming *queues.Incoming
	pending  *pending.Table

	// pendingCalls remembers the outgoing call message for each
	// in-flight serial so a timed-out call can be reported through the
	// same Factory.NewError(call, ...) contract a real reply uses.
	pendingCalls map[uint32]wire.Message

	filters *dispatch.List
	matches *dispatch.List

	processing bool
	closed     int32
	lastErr    error

	closeHooks []func()

	Counters dbgctl.Counters
	Probes   *dbgctl.Probes

	machineID    func() (string, error)
	nowFunc      func() time.Time
	authDeadline int64 // unix nanos; 0 = none set

	objectDispatcher func(msg wire.Message) bool
}

// New constructs a Connection in the UNSET state and applies opts.
// Fork detection is anchored to the constructing process's pid.
func New(opts ...Option) (*Connection, error) {
	c := &Connection{
		state:        StateUnset,
		pid:          os.Getpid(),
		outgoing:     queues.NewOutgoing(queues.DefaultOutgoingCapacity),
		incoming:     queues.NewIncoming(queues.DefaultIncomingCapacity),
		pending:      pending.New(),
		pendingCalls: make(map[uint32]wire.Message),
		filters:      &dispatch.List{},
		matches:      &dispatch.List{},
		Probes:       dbgctl.NewProbes(),
		machineID:    readMachineID,
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// checkNotForked implements the fork guard (§3, §5, §9): every public
// entry point compares the recorded pid against the current one.
func (c *Connection) checkNotForked() error {
	if c.pid != os.Getpid() {
		return dbuserr.Wrap(dbuserr.CodeFork, "connection used from a forked child", dbuserr.ErrFork)
	}
	return nil
}

func (c *Connection) requireUnset(op string) error {
	if c.state != StateUnset {
		return dbuserr.New(dbuserr.CodeConfiguration, op+": connection is no longer UNSET")
	}
	return nil
}

// State returns the current connection state.
func (c *Connection) State() State { return c.state }

// IsOpen reports whether the connection is in an open state (§3).
func (c *Connection) IsOpen() bool { return c.state.IsOpen() }

// UniqueName returns the bus-assigned unique name, empty before HELLO
// completes (or for non-bus-client / kernel connections without one).
func (c *Connection) UniqueName() string { return c.uniqueName }

// ServerGUID returns the peer's GUID learned during the SASL
// handshake, exactly as the peer sent it on the OK line; it is not
// validated or reformatted. Empty until the connection reaches RUNNING,
// and always empty for kernel transports.
func (c *Connection) ServerGUID() string { return c.peerGUID }

// PeerCapabilities returns the capabilities negotiated with the peer.
func (c *Connection) PeerCapabilities() Capabilities { return c.caps }

// OnClose registers a hook invoked exactly once when Close runs.
func (c *Connection) OnClose(fn func()) {
	c.closeHooks = append(c.closeHooks, fn)
}

// Fd returns the connection's pollable file descriptor, implementing
// reactor.Dispatcher (§4.6).
func (c *Connection) Fd() uintptr {
	if c.transport == nil {
		return ^uintptr(0)
	}
	return c.transport.Fd()
}

func (c *Connection) markClosedFlag() bool {
	return atomic.CompareAndSwapInt32(&c.closed, 0, 1)
}
