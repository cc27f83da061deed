package dispatch_test

import (
	"testing"

	"github.com/momentics/go-sd-bus/internal/dispatch"
)

func TestRunStopsAtFirstConsumer(t *testing.T) {
	var l dispatch.List
	var calledA, calledB bool
	l.Add(func(any) bool { calledA = true; return true })
	l.Add(func(any) bool { calledB = true; return true })

	consumed := l.Run("msg")
	if !consumed {
		t.Fatal("expected Run to report consumed=true")
	}
	if !calledA {
		t.Fatal("expected first handler to run")
	}
	if calledB {
		t.Fatal("expected second handler not to run once the first consumed the message")
	}
}

func TestRunFallsThroughWhenNoneConsume(t *testing.T) {
	var l dispatch.List
	calls := 0
	l.Add(func(any) bool { calls++; return false })
	l.Add(func(any) bool { calls++; return false })

	if l.Run("msg") {
		t.Fatal("expected consumed=false when no handler returns true")
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRemoveDuringRunIsSafeAndSkipsRemovedHandler(t *testing.T) {
	var l dispatch.List
	var tokenB dispatch.Token
	var calledC bool
	l.Add(func(any) bool {
		l.Remove(tokenB)
		return false
	})
	tokenB = l.Add(func(any) bool {
		t.Fatal("removed handler must not run")
		return false
	})
	l.Add(func(any) bool { calledC = true; return false })

	l.Run("msg")
	if !calledC {
		t.Fatal("expected the handler after the removed one to still run")
	}
	if l.Len() != 2 {
		t.Fatalf("Len() after compaction = %d, want 2", l.Len())
	}
}

func TestEachHandlerRunsAtMostOncePerDispatch(t *testing.T) {
	var l dispatch.List
	count := 0
	var token dispatch.Token
	token = l.Add(func(any) bool {
		count++
		// re-adding a handler mid-run must not cause the current one to
		// be invoked again within the same Run.
		l.Add(func(any) bool { return false })
		_ = token
		return false
	})
	l.Run("msg")
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestAddAfterRemovalIsUsable(t *testing.T) {
	var l dispatch.List
	tok := l.Add(func(any) bool { return false })
	l.Remove(tok)
	l.Run("msg") // compacts the removed entry out
	if l.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", l.Len())
	}
	called := false
	l.Add(func(any) bool { called = true; return true })
	l.Run("msg")
	if !called {
		t.Fatal("expected newly added handler to run")
	}
}
