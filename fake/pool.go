// File: fake/pool.go
// Author: momentics <momentics@gmail.com>
//
// Pool is a fake transport.Pool exercising the kernel transport's
// pool-refcounting and close-on-drain bookkeeping (§4.7) without a
// real kdbus ABI, matching fake.BufferPool's accounting-only style.
package fake

import (
	"github.com/momentics/go-sd-bus/wire"
)

type Pool struct {
	UniqueName string
	Inbox      []wire.Message
	Sent       []wire.Message
	Detached   bool
	SendErr    error
}

func (p *Pool) Attach() (string, error) { return p.UniqueName, nil }

func (p *Pool) Send(msg wire.Message) error {
	if p.SendErr != nil {
		return p.SendErr
	}
	p.Sent = append(p.Sent, msg)
	return nil
}

func (p *Pool) Receive() (wire.Message, error) {
	if len(p.Inbox) == 0 {
		return nil, nil
	}
	m := p.Inbox[0]
	p.Inbox = p.Inbox[1:]
	return m, nil
}

func (p *Pool) Release(msg wire.Message) {}

func (p *Pool) Fd() uintptr { return 0 }

func (p *Pool) Detach() error {
	p.Detached = true
	return nil
}
