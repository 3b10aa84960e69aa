package kernel

import (
	"sync/atomic"
	"testing"
	"time"
)

// Scenario: a 5-tick single-shot timer fires exactly once, its handler runs
// on the timer task, and the timer is stopped afterwards.
func TestTimerSingleShot(t *testing.T) {
	k, p := newTestKernel(t)

	var fired atomic.Uint32
	var onTimerTask atomic.Bool

	tm := k.NewTimer(func() {
		fired.Add(1)
		k.port.EnterCritical()
		onTimerTask.Store(k.current == k.timerTask)
		k.port.ExitCritical()
	}, TimerSingleShot)

	if st := tm.Start(5); st != StatusSuccess {
		t.Fatalf("Start = %s", st)
	}
	if st := tm.Start(5); st != StatusAlreadyActive {
		t.Fatalf("second Start = %s, want %s", st, StatusAlreadyActive)
	}

	go k.Start()
	waitFor(t, "timer task to block", func() bool { return blockedOn(k.timerTask, BlockTimerExpiry) })

	tick(p, 4)
	time.Sleep(2 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Fatalf("fired %d times before expiry", n)
	}

	tick(p, 1)
	waitFor(t, "timer to fire", func() bool { return fired.Load() == 1 })
	if !onTimerTask.Load() {
		t.Fatal("handler did not run on the timer task")
	}
	if tm.Running() {
		t.Fatal("single-shot timer still running after expiry")
	}

	tick(p, 10)
	time.Sleep(2 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Fatalf("single-shot fired %d times, want 1", n)
	}

	// A stopped single-shot can be re-armed.
	if st := tm.Start(3); st != StatusSuccess {
		t.Fatalf("re-arm = %s", st)
	}
	tick(p, 3)
	waitFor(t, "re-armed timer to fire", func() bool { return fired.Load() == 2 })
}

func TestTimerPeriodic(t *testing.T) {
	k, p := newTestKernel(t)

	var fired atomic.Uint32
	tm := k.NewTimer(func() { fired.Add(1) }, TimerPeriodic)

	if st := tm.Start(3); st != StatusSuccess {
		t.Fatalf("Start = %s", st)
	}

	go k.Start()
	waitFor(t, "timer task to block", func() bool { return blockedOn(k.timerTask, BlockTimerExpiry) })

	tick(p, 9)
	waitFor(t, "three periods", func() bool { return fired.Load() == 3 })
	if !tm.Running() {
		t.Fatal("periodic timer should stay running")
	}

	if st := tm.Stop(); st != StatusSuccess {
		t.Fatalf("Stop = %s", st)
	}
	tick(p, 6)
	time.Sleep(2 * time.Millisecond)
	if n := fired.Load(); n != 3 {
		t.Fatalf("fired %d times after stop, want 3", n)
	}
	if st := tm.Stop(); st != StatusNotActive {
		t.Fatalf("second Stop = %s, want %s", st, StatusNotActive)
	}
}

func TestTimerStartValidation(t *testing.T) {
	k, _ := newTestKernel(t)
	tm := k.NewTimer(func() {}, TimerPeriodic)
	if st := tm.Start(0); st != StatusInvalid {
		t.Fatalf("Start(0) = %s, want %s", st, StatusInvalid)
	}
}

// Two timers with staggered intervals expire independently while sharing the
// tick scan.
func TestTimersIndependentExpiry(t *testing.T) {
	k, p := newTestKernel(t)

	var fast, slow atomic.Uint32
	tmFast := k.NewTimer(func() { fast.Add(1) }, TimerPeriodic)
	tmSlow := k.NewTimer(func() { slow.Add(1) }, TimerSingleShot)

	tmFast.Start(2)
	tmSlow.Start(5)

	go k.Start()
	waitFor(t, "timer task to block", func() bool { return blockedOn(k.timerTask, BlockTimerExpiry) })

	tick(p, 10)
	waitFor(t, "fast timer to fire five times", func() bool { return fast.Load() == 5 })
	waitFor(t, "slow timer to fire once", func() bool { return slow.Load() == 1 })
	if tmSlow.Running() {
		t.Fatal("single-shot slow timer should be stopped")
	}
	if !tmFast.Running() {
		t.Fatal("fast periodic timer should be running")
	}
}
