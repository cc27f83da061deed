// File: reactor/binder.go
// Package reactor binds a connection's poll needs to an external
// event loop (§4.6): a pollable fd, a desired-events bitmask, and a
// next-wakeup deadline, re-synced before every poll via a prepare
// hook. Grounded on reactor.EventReactor's Register/Wait/Close
// contract and epoll_reactor.go's callback-per-fd epoll loop,
// generalized from a many-connection websocket registry to a single
// D-Bus connection's fd plus timer.
//
// Author: momentics <momentics@gmail.com>
package reactor

// PollMask mirrors transport.PollMask without importing it, keeping
// reactor decoupled from the transport package.
type PollMask uint32

const (
	PollIn  PollMask = 1 << 0
	PollOut PollMask = 1 << 1
)

// Dispatcher is the subset of Connection the binder needs: enough to
// re-sync its epoll registration and hand control back on each event
// or timeout.
type Dispatcher interface {
	Fd() uintptr
	Events() PollMask
	// NextTimeoutNanos returns an absolute deadline (unix nanos) and
	// true, or ok=false for "no deadline" (block indefinitely for
	// I/O only).
	NextTimeoutNanos() (deadline int64, ok bool)
	// Process runs one dispatch pass; called after I/O readiness or a
	// timer expiry.
	Process() error
}

// Binder is implemented per-platform (binder_linux.go / binder_stub.go).
type Binder interface {
	// Run blocks, driving Dispatcher.Process on I/O readiness and
	// timer expiry, until stop is closed or Process returns an error.
	Run(stop <-chan struct{}) error
	Close() error
}
