package kernel

import "tact/port"

// TaskStatus is the scheduler-visible state of a task.
type TaskStatus uint8

const (
	TaskReady TaskStatus = iota
	TaskRunning
	TaskBlocked
	TaskSuspended
)

func (s TaskStatus) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskBlocked:
		return "blocked"
	case TaskSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// BlockReason records why a blocked task is waiting.
type BlockReason uint8

const (
	BlockNone BlockReason = iota
	BlockSleep
	BlockSemaphore
	BlockMutex
	BlockQueueData
	BlockQueueSpace
	BlockCondVar
	BlockTimerExpiry
)

func (r BlockReason) String() string {
	switch r {
	case BlockNone:
		return "none"
	case BlockSleep:
		return "sleep"
	case BlockSemaphore:
		return "semaphore"
	case BlockMutex:
		return "mutex"
	case BlockQueueData:
		return "queue data"
	case BlockQueueSpace:
		return "queue space"
	case BlockCondVar:
		return "condvar"
	case BlockTimerExpiry:
		return "timer expiry"
	default:
		return "unknown"
	}
}

// WakeReason records what ended a task's wait. A blocked task is woken either
// by the primitive it waits on or by the tick handler's timeout scan; the
// reason tells the woken task which one happened.
type WakeReason uint8

const (
	WakeNone WakeReason = iota
	WakeWaitTimeout
	WakeSleepTimeout
	WakeSemaphoreTaken
	WakeMutexLocked
	WakeQueueData
	WakeQueueSpace
	WakeCondVarSignal
	WakeTimerExpiry
	WakeResume
)

func (r WakeReason) String() string {
	switch r {
	case WakeNone:
		return "none"
	case WakeWaitTimeout:
		return "wait timeout"
	case WakeSleepTimeout:
		return "sleep timeout"
	case WakeSemaphoreTaken:
		return "semaphore taken"
	case WakeMutexLocked:
		return "mutex locked"
	case WakeQueueData:
		return "queue data available"
	case WakeQueueSpace:
		return "queue space available"
	case WakeCondVarSignal:
		return "condvar signalled"
	case WakeTimerExpiry:
		return "timer expiry"
	case WakeResume:
		return "resume"
	default:
		return "unknown"
	}
}

// TaskConfig describes a task to create. Stack storage is owned by the port;
// StackBytes only matters to ports that build real stacks.
type TaskConfig struct {
	Name       string
	StackBytes uint32
	Priority   uint8
	Entry      func(arg any)
	Arg        any
}

// Task is a task control block. All mutable fields are protected by the
// kernel's critical section.
type Task struct {
	k   *Kernel
	ctx port.Task

	name  string
	entry func(any)
	arg   any

	priority       uint8
	status         TaskStatus
	blockedReason  BlockReason
	wakeReason     WakeReason
	remainingTicks uint32

	links   [2]taskLink
	started bool
}

// NewTask creates a task in the ready-to-start state. The task does not run
// until Start is called on it and the scheduler selects it.
func (k *Kernel) NewTask(cfg TaskConfig) *Task {
	if cfg.Entry == nil {
		panic("kernel: task without entry function")
	}
	t := &Task{
		k:        k,
		name:     cfg.Name,
		entry:    cfg.Entry,
		arg:      cfg.Arg,
		priority: cfg.Priority,
		status:   TaskReady,
	}
	t.ctx = k.port.NewTask(cfg.Name, cfg.StackBytes, t.run)
	k.port.EnterCritical()
	k.tasks = append(k.tasks, t)
	k.port.ExitCritical()
	return t
}

// run is the port-side entry of the task. A panic in task code is routed
// through the kernel fault hook; the port's exit stub then parks the task the
// way the hardware exit stub spins.
func (t *Task) run() {
	defer func() {
		if r := recover(); r != nil {
			t.k.triggerFault(FaultInfo{Task: t.name, Value: r, Stack: captureStack()})
		}
	}()
	t.entry(t.arg)
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Status returns the task's scheduler state.
func (t *Task) Status() TaskStatus {
	t.k.port.EnterCritical()
	s := t.status
	t.k.port.ExitCritical()
	return s
}

// Priority returns the task's current (possibly inherited) priority.
func (t *Task) Priority() uint8 {
	t.k.port.EnterCritical()
	p := t.priority
	t.k.port.ExitCritical()
	return p
}

// Start queues the task for execution. Calling Start from main before
// Kernel.Start only enrolls the task; calling it from a running task makes
// the new task runnable immediately, subject to priority.
func (t *Task) Start() Status {
	k := t.k
	k.port.EnterCritical()
	if t.started {
		k.port.ExitCritical()
		return StatusAlreadyActive
	}
	t.started = true
	t.status = TaskReady
	k.ready.add(t)
	k.port.ExitCritical()
	return StatusSuccess
}

// Suspend removes the task from scheduling until Resume. A suspended task is
// detached from whatever queue it occupies, including a primitive wait queue,
// so signals targeting it are suppressed.
func (t *Task) Suspend() {
	k := t.k
	k.port.EnterCritical()
	switch t.status {
	case TaskReady:
		k.ready.remove(t)
	case TaskBlocked:
		k.blocked.remove(t)
	}
	if wq := t.links[classWait].q; wq != nil {
		wq.remove(t)
	}
	t.remainingTicks = 0
	t.status = TaskSuspended
	t.blockedReason = BlockNone
	t.wakeReason = WakeNone
	self := t == k.current
	k.port.ExitCritical()
	if self {
		k.Yield()
	}
}

// Resume returns a suspended task to the ready queue with a RESUME wakeup
// reason. The task is not scheduled immediately; the next scheduling point
// decides.
func (t *Task) Resume() Status {
	k := t.k
	k.port.EnterCritical()
	if t.status != TaskSuspended {
		k.port.ExitCritical()
		return StatusNotSuspended
	}
	k.setReady(t, WakeResume)
	k.port.ExitCritical()
	return StatusSuccess
}

// setReady transitions a task to READY and enqueues it. The caller holds the
// critical section. Both the blocked-queue and wait-queue memberships are
// detached here, which is what serializes the primitive-signal path against
// the timeout path: whichever runs first detaches the task, and the loser
// finds status != BLOCKED.
func (k *Kernel) setReady(t *Task, reason WakeReason) {
	if t.status == TaskBlocked {
		k.blocked.remove(t)
	}
	if wq := t.links[classWait].q; wq != nil {
		wq.remove(t)
	}
	t.status = TaskReady
	t.blockedReason = BlockNone
	t.wakeReason = reason
	t.remainingTicks = 0
	k.ready.add(t)
}

// blockTask blocks the current task for up to ticks system ticks, 0 or
// MaxWait meaning forever. It returns only after the task is next selected
// to run.
func (k *Kernel) blockTask(t *Task, reason BlockReason, ticks uint32) {
	k.port.EnterCritical()
	if t != k.current {
		panic("kernel: block of a task that is not current")
	}
	if ticks == MaxWait {
		ticks = 0
	}
	t.remainingTicks = ticks
	t.status = TaskBlocked
	t.blockedReason = reason
	t.wakeReason = WakeNone
	// The blocked queue is scanned, never popped by priority; no sort.
	k.blocked.addFront(t)
	k.port.ExitCritical()

	k.Yield()
}

// SleepMS blocks the current task for the given number of milliseconds.
func (k *Kernel) SleepMS(ms uint32) Status {
	return k.sleep(MSToTicks(ms))
}

// SleepUS blocks the current task for the given number of microseconds.
func (k *Kernel) SleepUS(us uint32) Status {
	return k.sleep(USToTicks(us))
}

func (k *Kernel) sleep(ticks uint32) Status {
	k.port.EnterCritical()
	t := k.current
	ok := t != nil && t.status == TaskRunning
	k.port.ExitCritical()
	if !ok {
		return StatusNotActive
	}
	// A sleep shorter than one tick yields instead of blocking: blockTask
	// would treat zero ticks as forever.
	if ticks == 0 {
		k.Yield()
		return StatusSuccess
	}
	k.blockTask(t, BlockSleep, ticks)
	return StatusSuccess
}
