// Package kernel implements a fixed-priority preemptive scheduler for
// statically defined tasks plus the synchronization primitives used to
// coordinate them: mutexes with priority inheritance, counting semaphores,
// condition variables, bounded message queues, and software timers.
//
// The kernel owns no CPU-specific behavior. Everything below the
// context-switch line — critical sections, the deferred-switch request, the
// privilege trap, the tick source, and stack bring-up — is the port's
// business (see the port package). The hostsim port runs the kernel as an
// ordinary Go process for tests and demos; the armv7m port runs it on
// Cortex-M hardware.
package kernel

import "tact/port"

// Kernel is the single kernel-state object: scheduler queues, the running
// task, the software-timer list, and the expired-handler dispatch queue.
// It is created before the scheduler starts and never destroyed.
type Kernel struct {
	port port.Port

	ready   taskQueue
	blocked taskQueue
	current *Task
	tasks   []*Task

	timers   timerList
	handlers handlerRing

	timerTask *Task
	idleTask  *Task

	started      bool
	handlerDrops uint32

	fault faultState
}

// Stats is a point-in-time snapshot of kernel counters.
type Stats struct {
	// HandlerDrops counts expired timer handlers dropped because the
	// dispatch queue was full.
	HandlerDrops uint32
}

// New creates a kernel bound to a port. The timer-service task and the idle
// task are created here and started by Start.
func New(p port.Port) *Kernel {
	k := &Kernel{port: p}
	k.ready.class = classSched
	k.blocked.class = classSched
	k.timerTask = k.NewTask(TaskConfig{
		Name:       "timer",
		StackBytes: 1024,
		Priority:   PriorityHighest,
		Entry:      k.timerLoop,
	})
	k.idleTask = k.NewTask(TaskConfig{
		Name:       "idle",
		StackBytes: 768,
		Priority:   PriorityLowest,
		Entry:      k.idleLoop,
	})
	return k
}

// Start starts the scheduler: the timer and idle tasks are enrolled, the tick
// source is armed, and control transfers to the highest-priority ready task.
// On hardware ports Start does not return; the host port returns after the
// port is closed.
func (k *Kernel) Start() {
	if k.started {
		panic("kernel: scheduler already started")
	}
	k.started = true

	k.timerTask.Start()
	k.idleTask.Start()

	k.port.EnterCritical()
	first := k.ready.pop()
	first.status = TaskRunning
	k.current = first
	k.port.ExitCritical()

	// Arm the tick only after the first task is chosen: a tick landing
	// before that would otherwise make its own choice.
	k.port.StartTick(k.sysTick)

	k.port.Run(first.ctx)
}

// Yield voluntarily relinquishes the CPU. When tasks run unprivileged the
// switch request must be issued from privileged mode, so the yield traps
// first.
func (k *Kernel) Yield() {
	if tasksRunPrivileged {
		k.port.EnterCritical()
		k.scheduleNext()
		k.port.ExitCritical()
		return
	}
	k.port.Trap(func() {
		k.port.EnterCritical()
		k.scheduleNext()
		k.port.ExitCritical()
	})
}

// scheduleNext selects the next task to run and requests a deferred context
// switch when the selection differs from the running task. The caller holds
// the critical section.
//
// The running task is preempted only by a ready task of equal or higher
// priority; equal priority keeps FIFO order within the level.
func (k *Kernel) scheduleNext() {
	if k.ready.empty() {
		return
	}
	if k.current != nil && k.current.status == TaskRunning {
		if k.ready.peek().priority <= k.current.priority {
			k.current.status = TaskReady
			k.ready.add(k.current)
		} else {
			return
		}
	}
	next := k.ready.pop()
	next.status = TaskRunning
	k.current = next
	k.port.SwitchTo(next.ctx)
}

// sysTick is the kernel half of the tick interrupt: expire software timers,
// age blocked tasks, then reschedule.
func (k *Kernel) sysTick() {
	k.port.EnterCritical()
	k.processTimers()
	if !k.blocked.empty() {
		k.checkTimeouts()
	}
	k.scheduleNext()
	k.port.ExitCritical()
}

// checkTimeouts decrements the remaining wait of every blocked task with a
// countdown pending and readies the ones that reach zero. A task readied
// here leaves the blocked queue, so it cannot be decremented twice in the
// same tick. The caller holds the critical section.
func (k *Kernel) checkTimeouts() {
	for t := k.blocked.head; t != nil; {
		next := k.blocked.next(t)
		if t.remainingTicks > 0 {
			t.remainingTicks--
			if t.remainingTicks == 0 {
				if t.blockedReason == BlockSleep {
					k.setReady(t, WakeSleepTimeout)
				} else {
					k.setReady(t, WakeWaitTimeout)
				}
			}
		}
		t = next
	}
}

// idleLoop never blocks, so the ready queue can always produce a task.
func (k *Kernel) idleLoop(_ any) {
	for {
		k.port.Idle()
	}
}

// TaskInfo is a snapshot of one task's state.
type TaskInfo struct {
	Name       string
	Priority   uint8
	Status     TaskStatus
	BlockedOn  BlockReason
	WakeReason WakeReason
}

// Tasks returns a snapshot of every task known to the kernel, in creation
// order.
func (k *Kernel) Tasks() []TaskInfo {
	k.port.EnterCritical()
	out := make([]TaskInfo, len(k.tasks))
	for i, t := range k.tasks {
		out[i] = TaskInfo{
			Name:       t.name,
			Priority:   t.priority,
			Status:     t.status,
			BlockedOn:  t.blockedReason,
			WakeReason: t.wakeReason,
		}
	}
	k.port.ExitCritical()
	return out
}

// Stats returns a snapshot of kernel counters.
func (k *Kernel) Stats() Stats {
	k.port.EnterCritical()
	s := Stats{HandlerDrops: k.handlerDrops}
	k.port.ExitCritical()
	return s
}
