// File: internal/pending/pending.go
// Package pending implements the pending-reply table (§3, §4.4): a
// map from outgoing serial to reply callback + deadline, plus a
// secondary priority queue ordered by deadline. Grounded on
// internal/concurrency.Scheduler's container/heap-based taskHeap
// (deadline-ordered task queue), generalized from a single timer
// queue to a table cross-linked by serial with an O(log n)-removable
// back-reference (§9 "arena handle rather than a raw pointer").
//
// Author: momentics <momentics@gmail.com>
package pending

import "container/heap"

// Callback is invoked with the reply message (or a synthesized
// timeout error) when a pending call is resolved.
type Callback func(reply any)

// entry is one pending method call.
type entry struct {
	serial   uint32
	cb       Callback
	deadline int64 // unix nanos; 0 means no timeout
	index    int   // position in the heap, -1 if not in the heap
}

// Table tracks in-flight method calls awaiting a reply, plus a
// deadline-ordered heap over the subset with a finite deadline.
type Table struct {
	bySerial map[uint32]*entry
	dq       deadlineHeap
}

// New constructs an empty pending-reply table.
func New() *Table {
	return &Table{bySerial: make(map[uint32]*entry)}
}

// Add registers a new pending call. deadline == 0 means no timeout.
// The entry is inserted into both the table and (if it has a finite
// deadline) the deadline heap atomically, per §3's invariant.
func (t *Table) Add(serial uint32, cb Callback, deadlineUnixNano int64) {
	e := &entry{serial: serial, cb: cb, deadline: deadlineUnixNano, index: -1}
	t.bySerial[serial] = e
	if deadlineUnixNano != 0 {
		heap.Push(&t.dq, e)
	}
}

// Remove deletes a pending entry by serial from both structures,
// returning its callback if present.
func (t *Table) Remove(serial uint32) (Callback, bool) {
	e, ok := t.bySerial[serial]
	if !ok {
		return nil, false
	}
	delete(t.bySerial, serial)
	if e.index >= 0 {
		heap.Remove(&t.dq, e.index)
	}
	return e.cb, true
}

// Len returns the number of pending calls.
func (t *Table) Len() int { return len(t.bySerial) }

// PeekExpired returns the callback and serial of the earliest-deadline
// entry if its deadline is at or before nowUnixNano, removing it from
// both structures. ok is false if no entry has expired.
func (t *Table) PeekExpired(nowUnixNano int64) (serial uint32, cb Callback, ok bool) {
	if t.dq.Len() == 0 {
		return 0, nil, false
	}
	head := t.dq[0]
	if head.deadline > nowUnixNano {
		return 0, nil, false
	}
	heap.Pop(&t.dq)
	delete(t.bySerial, head.serial)
	return head.serial, head.cb, true
}

// NextDeadline returns the earliest pending deadline and true, or
// ok=false if no pending call carries a finite deadline.
func (t *Table) NextDeadline() (deadlineUnixNano int64, ok bool) {
	if t.dq.Len() == 0 {
		return 0, false
	}
	return t.dq[0].deadline, true
}

// Clear drops every pending entry without invoking callbacks — used
// by Close() (§5: "leaves pending records to be dropped ... without
// invoking their callbacks").
func (t *Table) Clear() {
	t.bySerial = make(map[uint32]*entry)
	t.dq = t.dq[:0]
}

// deadlineHeap is a container/heap.Interface ordered by entry.deadline
// with each entry's index kept current for O(log n) arbitrary removal.
type deadlineHeap []*entry

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
