// File: internal/queues/outgoing.go
// Package queues implements the connection's send/receive buffering
// (§4.3). Grounded on api.Ring's Enqueue/Dequeue/Len/Cap contract,
// specialized from a lock-free ring to the connection's single-
// threaded bounded array with partial-write bookkeeping.
//
// Author: momentics <momentics@gmail.com>
package queues

import "github.com/momentics/go-sd-bus/wire"

// DefaultOutgoingCapacity is the compile-time bound on queued
// outbound messages (§4.3: "bounded by a compile-time maximum ≈128").
const DefaultOutgoingCapacity = 128

// Outgoing is a bounded FIFO of not-yet-fully-written messages. Slot 0
// may carry a partial-write byte index so a resumed write does not
// resend already-transmitted bytes.
type Outgoing struct {
	cap      int
	msgs     []wire.Message
	writeIdx int // bytes of msgs[0] already written
}

// NewOutgoing constructs an Outgoing queue with room for at least one
// slot beyond capacity so Send can always record a partial write
// without reallocating (§3 invariant).
func NewOutgoing(capacity int) *Outgoing {
	if capacity <= 0 {
		capacity = DefaultOutgoingCapacity
	}
	return &Outgoing{
		cap:  capacity,
		msgs: make([]wire.Message, 0, capacity+1),
	}
}

// Len returns the number of queued messages.
func (q *Outgoing) Len() int { return len(q.msgs) }

// Full reports whether the queue is at its configured capacity.
func (q *Outgoing) Full() bool { return len(q.msgs) >= q.cap }

// Empty reports whether nothing is queued.
func (q *Outgoing) Empty() bool { return len(q.msgs) == 0 }

// PushBack appends msg to the tail. The caller must check Full first.
func (q *Outgoing) PushBack(msg wire.Message) {
	q.msgs = append(q.msgs, msg)
}

// PushFrontPartial inserts msg at the head with a partial write index,
// used when a direct write only wrote part of the frame.
func (q *Outgoing) PushFrontPartial(msg wire.Message, written int) {
	q.msgs = append(q.msgs, nil)
	copy(q.msgs[1:], q.msgs[:len(q.msgs)-1])
	q.msgs[0] = msg
	q.writeIdx = written
}

// Front returns the head message and how many of its bytes have
// already been written, or ok=false if empty.
func (q *Outgoing) Front() (msg wire.Message, written int, ok bool) {
	if len(q.msgs) == 0 {
		return nil, 0, false
	}
	return q.msgs[0], q.writeIdx, true
}

// AdvanceFront records additional bytes written for the head message.
func (q *Outgoing) AdvanceFront(n int) {
	q.writeIdx += n
}

// PopFront removes the fully-written head message, shifting the rest
// left, and resets the partial-write index.
func (q *Outgoing) PopFront() {
	if len(q.msgs) == 0 {
		return
	}
	q.msgs[0].Unref()
	copy(q.msgs, q.msgs[1:])
	q.msgs = q.msgs[:len(q.msgs)-1]
	q.writeIdx = 0
}

// Drain releases all references, used on connection close.
func (q *Outgoing) Drain() {
	for _, m := range q.msgs {
		m.Unref()
	}
	q.msgs = q.msgs[:0]
	q.writeIdx = 0
}
