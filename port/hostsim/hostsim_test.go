//go:build !tinygo

package hostsim

import (
	"testing"
	"time"
)

func recvOrFail(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("event = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

// A switch request inside a critical section must not take effect until the
// section exits.
func TestSwitchDeferredUntilCriticalExit(t *testing.T) {
	p := New(Config{ManualTick: true})
	t.Cleanup(p.Close)

	events := make(chan string, 8)

	b := p.NewTask("b", 0, func() {
		events <- "b"
		for {
			p.Idle()
		}
	})
	a := p.NewTask("a", 0, func() {
		events <- "a"
		p.EnterCritical()
		p.SwitchTo(b)
		events <- "a-in-critical"
		p.ExitCritical()
		for {
			p.Idle()
		}
	})

	go p.Run(a)

	recvOrFail(t, events, "a")
	recvOrFail(t, events, "a-in-critical")
	recvOrFail(t, events, "b")
}

// The outgoing task takes a switch requested by an interrupt context at its
// next checkpoint, not before.
func TestForeignSwitchTakenAtCheckpoint(t *testing.T) {
	p := New(Config{ManualTick: true})
	t.Cleanup(p.Close)

	events := make(chan string, 8)
	spin := make(chan struct{})

	b := p.NewTask("b", 0, func() {
		events <- "b"
		for {
			p.Idle()
		}
	})
	a := p.NewTask("a", 0, func() {
		events <- "a"
		<-spin
		p.Checkpoint()
		events <- "a-again"
		for {
			p.Idle()
		}
	})

	go p.Run(a)
	recvOrFail(t, events, "a")

	// Request the switch from this (foreign) goroutine; a is busy and has
	// not reached its checkpoint yet.
	p.EnterCritical()
	p.SwitchTo(b)
	p.ExitCritical()

	select {
	case got := <-events:
		t.Fatalf("unexpected event %q before checkpoint", got)
	case <-time.After(10 * time.Millisecond):
	}

	close(spin)
	recvOrFail(t, events, "b")
}

func TestCloseReleasesRun(t *testing.T) {
	p := New(Config{ManualTick: true})

	a := p.NewTask("a", 0, func() {
		for {
			p.Idle()
		}
	})

	done := make(chan struct{})
	go func() {
		p.Run(a)
		close(done)
	}()

	time.Sleep(time.Millisecond)
	p.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	// Idempotent.
	p.Close()
}

func TestGoidDistinct(t *testing.T) {
	main := goid()
	ch := make(chan uint64, 1)
	go func() { ch <- goid() }()
	other := <-ch
	if main == 0 || other == 0 {
		t.Fatalf("goid returned zero (%d, %d)", main, other)
	}
	if main == other {
		t.Fatalf("distinct goroutines share id %d", main)
	}
}
