//go:build linux
// +build linux

package reactor_test

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/momentics/go-sd-bus/fake"
	"github.com/momentics/go-sd-bus/reactor"
)

var errBoom = errors.New("reactor test: process failed")

func TestBinderRunProcessesOnReadableFd(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	d := &fake.Dispatcher{FdVal: r.Fd(), EventsVal: reactor.PollIn}
	b, err := reactor.NewBinder(d)
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	defer b.Close()

	if _, err := w.Write([]byte{1}); err != nil {
		t.Fatalf("w.Write: %v", err)
	}

	stop := make(chan struct{})
	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(stop) }()

	deadline := time.Now().Add(2 * time.Second)
	for d.Calls == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(stop)

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after stop was closed")
	}
	if d.Calls == 0 {
		t.Fatal("expected Process to be called at least once for a readable fd")
	}
}

func TestBinderRunFiresOnTimeoutDeadline(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	d := &fake.Dispatcher{
		FdVal:     r.Fd(),
		EventsVal: reactor.PollIn,
		HasDead:   true,
		Deadline:  time.Now().Add(10 * time.Millisecond).UnixNano(),
	}
	b, err := reactor.NewBinder(d)
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	defer b.Close()

	stop := make(chan struct{})
	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(stop) }()

	deadline := time.Now().Add(2 * time.Second)
	for d.Calls == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(stop)

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after stop was closed")
	}
	if d.Calls == 0 {
		t.Fatal("expected Process to fire once the deadline elapsed even without I/O readiness")
	}
}

func TestBinderRunReturnsDispatcherError(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	boom := &fake.Dispatcher{FdVal: r.Fd(), EventsVal: reactor.PollIn, ProcessErr: errBoom}
	b, err := reactor.NewBinder(boom)
	if err != nil {
		t.Fatalf("NewBinder: %v", err)
	}
	defer b.Close()

	if _, err := w.Write([]byte{1}); err != nil {
		t.Fatalf("w.Write: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(make(chan struct{})) }()

	select {
	case err := <-runErr:
		if err == nil {
			t.Fatal("expected Run to propagate the dispatcher's Process error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Process returned an error")
	}
}
