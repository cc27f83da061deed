// File: transport/kernel.go
// Author: momentics <momentics@gmail.com>
//
// KernelTransport models the kernel datagram/pool transport (§4.2,
// §4.7): messages ride a mapped pool via ioctls, and the fd is
// retained until the last message borrowed from the pool is
// unreferenced. The kdbus ioctl ABI never shipped upstream and
// carries no golang.org/x/sys/unix bindings (see DESIGN.md), so Pool
// is left as an injected interface: a real build would satisfy it
// with kdbus ioctls, this module ships the pool-refcounting and
// close-on-drain state machine plus a fake for tests.
package transport

import "github.com/momentics/go-sd-bus/wire"

// Pool is the kernel-transport ioctl surface this core depends on.
// Implemented externally against the real kdbus ABI; go-sd-bus core
// only needs the operations below to run its state machine.
type Pool interface {
	// Attach performs the kernel equivalent of connect+HELLO in one
	// step, returning the assigned unique name.
	Attach() (uniqueName string, err error)
	// Send transmits msg via the pool, returning ErrWouldBlock if the
	// kernel-side queue is full.
	Send(msg wire.Message) error
	// Receive returns the next message borrowed from the pool, or
	// (nil, nil) if none is ready. Borrowed messages must be released
	// via Release once fully processed.
	Receive() (wire.Message, error)
	// Release returns a borrowed message's pool slot.
	Release(msg wire.Message)
	// Fd returns the pollable fd backing the pool mapping.
	Fd() uintptr
	// Detach releases the kernel-side connection. It is a no-op until
	// every borrowed message has been Released (§4.7).
	Detach() error
}

// KernelTransport adapts a Pool to the common Transport contract.
type KernelTransport struct {
	pool       Pool
	uniqueName string
	borrowed   int
	closing    bool
}

// NewKernelTransport attaches to the kernel bus via pool.
func NewKernelTransport(pool Pool) (*KernelTransport, string, error) {
	name, err := pool.Attach()
	if err != nil {
		return nil, "", err
	}
	return &KernelTransport{pool: pool, uniqueName: name}, name, nil
}

func (k *KernelTransport) Write(msg wire.Message, idx *int) (Result, error) {
	if err := k.pool.Send(msg); err != nil {
		if err == ErrWouldBlock {
			return WriteWouldBlock, nil
		}
		return 0, err
	}
	return WriteDone, nil
}

func (k *KernelTransport) Read() (wire.Message, error) {
	msg, err := k.pool.Receive()
	if err != nil {
		return nil, err
	}
	if msg != nil {
		k.borrowed++
	}
	return msg, nil
}

// ReleaseMessage returns a message's pool slot; the connection calls
// this once a message dequeued via Read is fully processed and, if
// Close was already requested, detaches the pool once the count
// reaches zero.
func (k *KernelTransport) ReleaseMessage(msg wire.Message) error {
	k.pool.Release(msg)
	k.borrowed--
	if k.closing && k.borrowed <= 0 {
		return k.pool.Detach()
	}
	return nil
}

func (k *KernelTransport) Fd() uintptr { return k.pool.Fd() }

func (k *KernelTransport) Events() PollMask { return PollIn }

// Close requests detachment; the underlying pool fd is retained until
// every borrowed message has been released (§4.7).
func (k *KernelTransport) Close() error {
	k.closing = true
	if k.borrowed <= 0 {
		return k.pool.Detach()
	}
	return nil
}

func (k *KernelTransport) Features() Features {
	return Features{CanPassFds: true, IsKernel: true}
}

func (k *KernelTransport) AttachFds(bool) {} // capability is implicit for kernel transport

// UniqueName returns the name learned at attach time, standing in for
// the HELLO round-trip that non-kernel transports must perform.
func (k *KernelTransport) UniqueName() string { return k.uniqueName }
