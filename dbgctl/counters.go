// File: dbgctl/counters.go
// Package dbgctl exposes connection-level counters and probe hooks
// for external introspection, without pulling in a logging framework.
//
// Grounded on control.MetricsRegistry's key/value snapshot map and
// control.DebugProbes' named-probe registry, merged into a single
// counters struct sized for a connection instead of a whole service.
//
// Author: momentics <momentics@gmail.com>
package dbgctl

import "sync"

// Counters tracks per-connection traffic and queue-depth statistics.
// The connection itself is single-threaded (§5), so plain fields
// suffice; the mutex only guards concurrent Snapshot readers.
type Counters struct {
	mu sync.RWMutex

	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
	PendingReplies   int
	OutgoingQueued   int
	IncomingQueued   int
	TimeoutsFired    uint64
}

// Snapshot returns a copy of the current counters, safe to read
// concurrently with the owning connection's single-threaded updates
// as long as updates go through the setters below.
func (c *Counters) Snapshot() Counters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	return cp
}

func (c *Counters) OnSent(bytes int) {
	c.mu.Lock()
	c.MessagesSent++
	c.BytesSent += uint64(bytes)
	c.mu.Unlock()
}

func (c *Counters) OnReceived(bytes int) {
	c.mu.Lock()
	c.MessagesReceived++
	c.BytesReceived += uint64(bytes)
	c.mu.Unlock()
}

func (c *Counters) OnTimeout() {
	c.mu.Lock()
	c.TimeoutsFired++
	c.mu.Unlock()
}

func (c *Counters) SetQueueDepths(pending, outgoing, incoming int) {
	c.mu.Lock()
	c.PendingReplies = pending
	c.OutgoingQueued = outgoing
	c.IncomingQueued = incoming
	c.mu.Unlock()
}

// Probes is a named registry of on-demand debug hooks, e.g. dumping
// the filter/match list sizes or the transport's negotiated features.
type Probes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

func NewProbes() *Probes {
	return &Probes{probes: make(map[string]func() any)}
}

func (p *Probes) Register(name string, fn func() any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes[name] = fn
}

func (p *Probes) DumpState() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.probes))
	for k, fn := range p.probes {
		out[k] = fn()
	}
	return out
}
