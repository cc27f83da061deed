// File: internal/dispatch/list.go
// Package dispatch implements the filter list and match list (§3, §4.5
// steps 6-7, §9). Grounded on EventLoop.RegisterHandler/UnregisterHandler's
// copy-on-write handler slice, adapted so a callback that mutates the
// list mid-iteration restarts the scan safely and every callback sees
// a given message at most once per dispatch (via a stamped iteration
// counter instead of a copy-on-write swap, since here mutation happens
// synchronously from within the very callback being iterated).
//
// Author: momentics <momentics@gmail.com>
package dispatch

// Handler is invoked with an inbound message; a non-zero (true) result
// means the message was consumed and the pipeline should stop.
type Handler func(msg any) bool

type record struct {
	h             Handler
	lastIteration uint64
	removed       bool
}

// List is an ordered collection of callbacks with modification-safe
// iteration: a callback may add or remove entries (including itself)
// during Run without corrupting the scan, and no entry runs twice
// against the same message.
type List struct {
	entries   []*record
	iteration uint64
}

// Token identifies a registered handler for later removal. Callers
// outside the package treat it opaquely.
type Token = *record

// Add appends a new handler, returning a token usable with Remove.
func (l *List) Add(h Handler) Token {
	r := &record{h: h}
	l.entries = append(l.entries, r)
	return r
}

// Remove marks a handler for removal; it is compacted out by the next
// Run.
func (l *List) Remove(token Token) {
	token.removed = true
}

// Len returns the number of live (non-removed) entries.
func (l *List) Len() int {
	n := 0
	for _, e := range l.entries {
		if !e.removed {
			n++
		}
	}
	return n
}

// Run dispatches msg to each live handler in order, restarting the
// scan whenever the list is mutated so a caller that removes itself
// (or others) never causes a skipped or double-invoked entry. Each
// handler is stamped with the current iteration and will not be
// invoked again for this Run even if the list is rescanned. Returns
// true if some handler consumed the message.
func (l *List) Run(msg any) bool {
	l.iteration++
	iter := l.iteration
	consumed := false

restart:
	before := len(l.entries)
	for _, e := range l.entries {
		if e.removed || e.lastIteration == iter {
			continue
		}
		e.lastIteration = iter
		if e.h(msg) {
			consumed = true
			l.compact()
			return true
		}
		if len(l.entries) != before {
			l.compact()
			goto restart
		}
	}
	l.compact()
	return consumed
}

// compact drops removed entries in place.
func (l *List) compact() {
	out := l.entries[:0]
	for _, e := range l.entries {
		if !e.removed {
			out = append(out, e)
		}
	}
	l.entries = out
}
