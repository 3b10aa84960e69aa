//go:build tinygo && baremetal

// Package armv7m implements the port contract for ARMv7-M (Cortex-M3/M4/M7)
// targets: PRIMASK critical sections, a PendSV-deferred context switch, an
// SVC privilege trap, and the SysTick tick source.
//
// The register-level switch lives in the PendSV handler. Each task stack is
// primed with a synthetic exception frame 17 words below the stack top —
// R4-R11 and EXC_RETURN below the hardware-stacked R0-R3, R12, LR, PC, xPSR —
// so the first restore of a task looks exactly like a return from an
// interrupt it never took.
package armv7m

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"

	"tact/port"
)

// System control block and SysTick, CMSIS register layout.
type scbRegs struct {
	CPUID volatile.Register32
	ICSR  volatile.Register32
	VTOR  volatile.Register32
	AIRCR volatile.Register32
	SCR   volatile.Register32
	CCR   volatile.Register32
	SHPR1 volatile.Register32
	SHPR2 volatile.Register32
	SHPR3 volatile.Register32
}

type systRegs struct {
	CSR   volatile.Register32
	RVR   volatile.Register32
	CVR   volatile.Register32
	CALIB volatile.Register32
}

var (
	scb  = (*scbRegs)(unsafe.Pointer(uintptr(0xE000ED00)))
	syst = (*systRegs)(unsafe.Pointer(uintptr(0xE000E010)))
)

const (
	icsrPendSVSet = 0x1 << 28
	// PendSV must be the lowest interrupt priority so the switch tail-chains
	// after every other pending handler.
	shpr3PendSVLowest = 0xff << 16

	csrEnable    = 0x1
	csrTickInt   = 0x1 << 1
	csrClkSource = 0x1 << 2
)

const (
	frameWords       = 17
	excReturnThrdPSP = 0xfffffffd
	xpsrThumb        = 0x01000000
)

// Task is an execution context: a statically sized stack and the saved stack
// pointer the PendSV handler stores through.
type Task struct {
	sp    uintptr // must stay the first field; PendSV addresses it directly
	name  string
	stack []uint32
	entry func()
}

func (t *Task) Name() string { return t.name }

// Port is the ARMv7-M boundary. It is a singleton: the exception handlers
// below need a fixed target.
type Port struct {
	irq     uintptr
	current *Task
	prev    *Task
	trapFn  func()
	tick    func()

	// TickCycles is the SysTick reload value, i.e. CPU cycles per kernel
	// tick. Set before the kernel starts.
	TickCycles uint32

	registry []*Task
}

var std = &Port{}

// New returns the board port. Repeated calls return the same instance.
func New(tickCycles uint32) *Port {
	std.TickCycles = tickCycles
	return std
}

// EnterCritical masks interrupts via PRIMASK.
func (p *Port) EnterCritical() {
	p.irq = arm.DisableInterrupts()
}

// ExitCritical restores the interrupt mask.
func (p *Port) ExitCritical() {
	arm.EnableInterrupts(p.irq)
}

// NewTask allocates the task stack and primes the synthetic exception frame.
func (p *Port) NewTask(name string, stackBytes uint32, entry func()) port.Task {
	words := stackBytes / 4
	if words < frameWords+8 {
		words = frameWords + 8
	}
	t := &Task{name: name, stack: make([]uint32, words), entry: entry}
	idx := len(p.registry)
	p.registry = append(p.registry, t)

	top := len(t.stack) - frameWords
	frame := t.stack[top:]
	frame[8] = excReturnThrdPSP
	frame[9] = uint32(idx) // R0: registry index handed to the start stub
	frame[14] = uint32(uintptr(unsafe.Pointer(&taskExitSym)))
	frame[15] = uint32(uintptr(unsafe.Pointer(&taskStartSym)))
	frame[16] = xpsrThumb
	t.sp = uintptr(unsafe.Pointer(&t.stack[top]))
	return t
}

// SwitchTo pends PendSV; the register switch happens once every other
// pending handler has run. The caller holds the critical section.
func (p *Port) SwitchTo(t port.Task) {
	p.prev = p.current
	p.current = t.(*Task)
	scb.ICSR.SetBits(icsrPendSVSet)
}

// Trap raises an SVC so fn runs in handler (privileged) mode.
func (p *Port) Trap(fn func()) {
	p.trapFn = fn
	arm.Asm("svc #255")
	p.trapFn = nil
}

// StartTick programs SysTick to fire every TickCycles CPU cycles.
func (p *Port) StartTick(tick func()) {
	p.tick = tick
	scb.SHPR3.SetBits(shpr3PendSVLowest)
	syst.RVR.Set(p.TickCycles - 1)
	syst.CVR.Set(0)
	syst.CSR.Set(csrEnable | csrTickInt | csrClkSource)
}

// Run switches the CPU onto the first task's stack and enters it. Tasks use
// PSP; handler mode keeps MSP. Never returns.
func (p *Port) Run(first port.Task) {
	t := first.(*Task)
	p.current = t
	// PSP at the frame top: the direct call below consumes no synthetic
	// frame, the first PendSV builds a real one.
	psp := uintptr(unsafe.Pointer(&t.stack[len(t.stack)-1])) + 4
	arm.AsmFull(`
		msr psp, {psp}
		mrs r3, control
		orr r3, r3, #2
		msr control, r3
		isb
	`, map[string]interface{}{"psp": psp})
	t.entry()
	for {
		arm.Asm("wfi")
	}
}

// Idle waits for the next interrupt.
func (p *Port) Idle() {
	arm.Asm("wfi")
}

// Checkpoint is a no-op: SysTick preempts asynchronously.
func (p *Port) Checkpoint() {}

// taskStartSym is the entry stub below, referenced by address when priming
// stack frames.
//
//go:extern tact_task_start
var taskStartSym [0]byte

// taskStart is the first code a task executes after its synthetic frame is
// restored: R0 carries the registry index. A task entry that returns spins
// until preempted.
//
//export tact_task_start
func taskStart(r0 uintptr) {
	t := std.registry[int(r0)]
	t.entry()
	for {
		arm.Asm("wfi")
	}
}

// taskExitSym backs the synthetic LR slot; a task that returns past its
// entry lands here.
//
//go:extern tact_task_exit
var taskExitSym [0]byte

//export tact_task_exit
func taskExit() {
	for {
		arm.Asm("wfi")
	}
}

// sysTickHandler is the hardware tick: it runs the kernel tick handler,
// which reschedules and pends PendSV when a switch is due.
//
//export SysTick_Handler
func sysTickHandler() {
	if std.tick != nil {
		std.tick()
	}
}

// svcHandler completes Trap in privileged mode.
//
//export SVC_Handler
func svcHandler() {
	if fn := std.trapFn; fn != nil {
		fn()
	}
}

// pendSVHandler performs the deferred register switch: stack R4-R11 and
// EXC_RETURN below the hardware frame of the outgoing task, save its PSP,
// then unstack the incoming task and resume it via exception return.
//
//export PendSV_Handler
func pendSVHandler() {
	prev, next := std.prev, std.current
	std.prev = nil
	if next == nil {
		return
	}
	if prev != nil {
		psp := arm.AsmFull(`
			mrs {}, psp
		`, nil)
		prev.sp = psp - 9*4
		arm.AsmFull(`
			mov r0, {sp}
			stmia r0!, {r4-r11}
			mov r1, lr
			str r1, [r0]
		`, map[string]interface{}{"sp": prev.sp})
	}
	arm.AsmFull(`
		mov r0, {sp}
		ldmia r0!, {r4-r11}
		ldr lr, [r0], #4
		msr psp, r0
	`, map[string]interface{}{"sp": next.sp})
}
