package pending_test

import (
	"testing"

	"github.com/momentics/go-sd-bus/internal/pending"
)

func TestAddRemoveRoundTrip(t *testing.T) {
	tbl := pending.New()
	var got any
	tbl.Add(1, func(reply any) { got = reply }, 0)
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
	cb, ok := tbl.Remove(1)
	if !ok {
		t.Fatal("expected Remove to find serial 1")
	}
	cb("reply")
	if got != "reply" {
		t.Fatalf("callback got %v, want reply", got)
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len() after Remove = %d, want 0", tbl.Len())
	}
}

func TestRemoveUnknownSerial(t *testing.T) {
	tbl := pending.New()
	if _, ok := tbl.Remove(99); ok {
		t.Fatal("expected Remove of unregistered serial to report ok=false")
	}
}

func TestPeekExpiredOrdersByDeadline(t *testing.T) {
	tbl := pending.New()
	tbl.Add(1, func(any) {}, 300)
	tbl.Add(2, func(any) {}, 100)
	tbl.Add(3, func(any) {}, 200)

	serial, _, ok := tbl.PeekExpired(150)
	if !ok || serial != 2 {
		t.Fatalf("PeekExpired(150) = %d, %v, want 2, true", serial, ok)
	}
	// serial 2 is now gone; nothing else has expired yet.
	if _, _, ok := tbl.PeekExpired(150); ok {
		t.Fatal("expected no further expiries at the same instant")
	}
	serial, _, ok = tbl.PeekExpired(250)
	if !ok || serial != 3 {
		t.Fatalf("PeekExpired(250) = %d, %v, want 3, true", serial, ok)
	}
}

func TestPeekExpiredRemovesFromBothStructures(t *testing.T) {
	tbl := pending.New()
	tbl.Add(1, func(any) {}, 100)
	tbl.PeekExpired(200)
	if tbl.Len() != 0 {
		t.Fatalf("Len() after expiry = %d, want 0", tbl.Len())
	}
	if _, ok := tbl.Remove(1); ok {
		t.Fatal("expected serial removed by PeekExpired to no longer be present")
	}
}

func TestNextDeadlineIgnoresNoDeadlineEntries(t *testing.T) {
	tbl := pending.New()
	tbl.Add(1, func(any) {}, 0) // no deadline
	if _, ok := tbl.NextDeadline(); ok {
		t.Fatal("expected no deadline reported when only a no-timeout entry exists")
	}
	tbl.Add(2, func(any) {}, 500)
	d, ok := tbl.NextDeadline()
	if !ok || d != 500 {
		t.Fatalf("NextDeadline() = %d, %v, want 500, true", d, ok)
	}
}

func TestRemoveBeforeDeadlineDropsFromHeap(t *testing.T) {
	tbl := pending.New()
	tbl.Add(1, func(any) {}, 100)
	tbl.Add(2, func(any) {}, 200)
	tbl.Remove(1)
	d, ok := tbl.NextDeadline()
	if !ok || d != 200 {
		t.Fatalf("NextDeadline() after removing earlier entry = %d, %v, want 200, true", d, ok)
	}
}

func TestClearDropsEverythingWithoutInvokingCallbacks(t *testing.T) {
	tbl := pending.New()
	invoked := false
	tbl.Add(1, func(any) { invoked = true }, 100)
	tbl.Clear()
	if tbl.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", tbl.Len())
	}
	if _, ok := tbl.NextDeadline(); ok {
		t.Fatal("expected no deadline after Clear")
	}
	if invoked {
		t.Fatal("Clear must not invoke pending callbacks")
	}
}
