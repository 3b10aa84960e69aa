package kernel

import (
	"testing"
	"time"

	"tact/port/hostsim"
)

// newTestKernel builds a kernel on a manually ticked simulated port. Tests
// inject ticks with p.TriggerTick, so timeouts advance only when a test says
// so.
func newTestKernel(t *testing.T) (*Kernel, *hostsim.Port) {
	t.Helper()
	p := hostsim.New(hostsim.Config{ManualTick: true})
	k := New(p)
	t.Cleanup(p.Close)
	return k, p
}

// snap reads a task's scheduler state atomically with respect to the kernel.
func snap(tk *Task) (TaskStatus, BlockReason, WakeReason, uint8) {
	k := tk.k
	k.port.EnterCritical()
	st, br, wr, pr := tk.status, tk.blockedReason, tk.wakeReason, tk.priority
	k.port.ExitCritical()
	return st, br, wr, pr
}

func blockedOn(tk *Task, reason BlockReason) bool {
	st, br, _, _ := snap(tk)
	return st == TaskBlocked && br == reason
}

const testWait = 5 * time.Second

// waitFor polls cond without injecting ticks.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testWait)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// pumpUntil injects a tick per poll so sleeping tasks make progress while
// waiting for cond.
func pumpUntil(t *testing.T, p *hostsim.Port, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testWait)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		p.TriggerTick()
		time.Sleep(200 * time.Microsecond)
	}
	t.Fatalf("timed out pumping ticks for %s", what)
}

// tick injects n ticks with a small settle gap.
func tick(p *hostsim.Port, n int) {
	for i := 0; i < n; i++ {
		p.TriggerTick()
		time.Sleep(100 * time.Microsecond)
	}
}

// parkForever keeps a finished test task off the CPU.
func parkForever(k *Kernel) {
	for {
		k.SleepMS(3_600_000)
	}
}
