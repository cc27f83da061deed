// File: fake/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Reactor is a trivial test double for reactor.Dispatcher-driven code
// that doesn't need a real epoll loop, matching FakeReactor's
// context-driven Run/Register stub, generalized to a manual-step
// dispatcher a test can advance explicitly.
package fake

import "github.com/momentics/go-sd-bus/reactor"

// Dispatcher records how many times Process was invoked; useful for
// asserting the reactor package calls back correctly against a
// programmable NextTimeoutNanos/Events pair.
type Dispatcher struct {
	FdVal      uintptr
	EventsVal  reactor.PollMask
	Deadline   int64
	HasDead    bool
	ProcessErr error
	Calls      int
}

func (d *Dispatcher) Fd() uintptr { return d.FdVal }

func (d *Dispatcher) Events() reactor.PollMask { return d.EventsVal }

func (d *Dispatcher) NextTimeoutNanos() (int64, bool) { return d.Deadline, d.HasDead }

func (d *Dispatcher) Process() error {
	d.Calls++
	return d.ProcessErr
}
