// File: internal/queues/incoming.go
// Author: momentics <momentics@gmail.com>
//
// Incoming is the receive-side growable FIFO (§4.3: "grows on demand
// up to a bounded maximum ≈128"). Backed by github.com/eapache/queue,
// a ring-buffer-backed growable queue (see DESIGN.md).
package queues

import "github.com/eapache/queue"

// DefaultIncomingCapacity bounds how many undispatched inbound
// messages may be queued before Push reports the queue full.
const DefaultIncomingCapacity = 128

// Incoming is a growable, capacity-bounded FIFO of undispatched
// inbound messages.
type Incoming struct {
	q   *queue.Queue
	cap int
}

// NewIncoming constructs an Incoming queue bounded at capacity.
func NewIncoming(capacity int) *Incoming {
	if capacity <= 0 {
		capacity = DefaultIncomingCapacity
	}
	return &Incoming{q: queue.New(), cap: capacity}
}

// Len returns the number of queued messages.
func (q *Incoming) Len() int { return q.q.Length() }

// Full reports whether Push would fail.
func (q *Incoming) Full() bool { return q.q.Length() >= q.cap }

// Push appends a value at the tail; returns false if the queue is at
// capacity.
func (q *Incoming) Push(v any) bool {
	if q.Full() {
		return false
	}
	q.q.Add(v)
	return true
}

// Pop removes and returns the head value, or ok=false if empty.
func (q *Incoming) Pop() (v any, ok bool) {
	if q.q.Length() == 0 {
		return nil, false
	}
	v = q.q.Remove()
	return v, true
}
