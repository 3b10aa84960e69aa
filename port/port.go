// Package port names the boundary between the kernel and the CPU. The kernel
// makes every scheduling decision; a Port carries them out: it models the
// interrupt mask, prepares task stacks, performs the deferred context switch,
// provides the privilege trap, and drives the periodic tick.
//
// Two ports exist: armv7m for Cortex-M hardware and hostsim, which runs the
// kernel as an ordinary Go process for tests and host demos.
package port

// Task is an opaque per-task execution context owned by a Port.
type Task interface {
	Name() string
}

// Port is the hardware boundary contract.
type Port interface {
	// EnterCritical masks interrupts (PRIMASK analog). Critical sections do
	// not nest.
	EnterCritical()

	// ExitCritical unmasks interrupts. A pending context switch may be taken
	// here.
	ExitCritical()

	// NewTask prepares an execution context whose first run enters entry.
	// stackBytes is advisory on ports that do not build real stacks.
	NewTask(name string, stackBytes uint32, entry func()) Task

	// SwitchTo requests a deferred context switch to t. The register-level
	// switch happens after all pending interrupt work completes, never inside
	// the caller's critical section. The caller holds the critical section.
	SwitchTo(t Task)

	// Trap runs fn in privileged context (supervisor call). Used by yield
	// when tasks execute unprivileged.
	Trap(fn func())

	// StartTick arms the periodic tick source; tick is the kernel's tick
	// handler and runs in interrupt context.
	StartTick(tick func())

	// Run transfers control to the first task. It does not return on
	// hardware ports; the host port returns once it is closed.
	Run(first Task)

	// Idle waits inside the idle task loop until scheduling work arrives
	// (WFI analog).
	Idle()

	// Checkpoint is an explicit preemption point for compute-bound loops on
	// ports without asynchronous preemption. Hardware ports make it a no-op.
	Checkpoint()
}
