package kernel

// TimerMode selects single-shot or periodic operation.
type TimerMode uint8

const (
	TimerSingleShot TimerMode = iota
	TimerPeriodic
)

func (m TimerMode) String() string {
	switch m {
	case TimerSingleShot:
		return "single-shot"
	case TimerPeriodic:
		return "periodic"
	default:
		return "unknown"
	}
}

// Timer is a software timer ticked by the scheduler. Expired handlers do not
// run in the tick interrupt; they are queued and executed by the
// highest-priority timer-service task.
type Timer struct {
	k       *Kernel
	handler func()

	intervalTicks uint32
	ticksToExpire uint32
	next          *Timer
	mode          TimerMode
	running       bool
}

// timerList holds the running timers, most recently started first.
type timerList struct {
	head *Timer
}

// NewTimer creates a stopped timer that invokes handler on expiry.
func (k *Kernel) NewTimer(handler func(), mode TimerMode) *Timer {
	if handler == nil {
		panic("kernel: timer without handler")
	}
	return &Timer{k: k, handler: handler, mode: mode}
}

// Start arms the timer with the given interval in system ticks.
func (tm *Timer) Start(intervalTicks uint32) Status {
	if intervalTicks == 0 {
		return StatusInvalid
	}
	k := tm.k
	k.port.EnterCritical()
	if tm.running {
		k.port.ExitCritical()
		return StatusAlreadyActive
	}
	tm.running = true
	tm.intervalTicks = intervalTicks
	tm.ticksToExpire = intervalTicks
	tm.next = k.timers.head
	k.timers.head = tm
	k.port.ExitCritical()
	return StatusSuccess
}

// Stop disarms the timer and unlinks it from the running list.
func (tm *Timer) Stop() Status {
	k := tm.k
	k.port.EnterCritical()
	if !tm.running {
		k.port.ExitCritical()
		return StatusNotActive
	}
	k.stopTimer(tm)
	k.port.ExitCritical()
	return StatusSuccess
}

// Running reports whether the timer is armed.
func (tm *Timer) Running() bool {
	tm.k.port.EnterCritical()
	r := tm.running
	tm.k.port.ExitCritical()
	return r
}

// stopTimer clears the running flag and unlinks tm. The caller holds the
// critical section.
func (k *Kernel) stopTimer(tm *Timer) {
	tm.running = false
	if k.timers.head == tm {
		k.timers.head = tm.next
		tm.next = nil
		return
	}
	for at := k.timers.head; at != nil; at = at.next {
		if at.next == tm {
			at.next = tm.next
			tm.next = nil
			return
		}
	}
}

// processTimers ages every running timer by one tick. An expired handler is
// pushed onto the dispatch queue and the timer task is woken; a single-shot
// timer is stopped in place. The successor is saved before touching a node
// because the stop unlinks it mid-scan. The caller holds the critical
// section.
func (k *Kernel) processTimers() {
	for tm := k.timers.head; tm != nil; {
		next := tm.next
		if tm.ticksToExpire > 0 {
			tm.ticksToExpire--
		}
		if tm.ticksToExpire == 0 {
			if !k.handlers.push(tm.handler) {
				k.handlerDrops++
			}
			if k.timerTask.status == TaskBlocked {
				k.setReady(k.timerTask, WakeTimerExpiry)
			}
			tm.ticksToExpire = tm.intervalTicks
			if tm.mode == TimerSingleShot {
				k.stopTimer(tm)
			}
		}
		tm = next
	}
}

// timerLoop drains the expired-handler queue, blocking indefinitely when it
// runs dry. Handlers execute here, outside interrupt context, at the highest
// task priority.
func (k *Kernel) timerLoop(_ any) {
	for {
		k.port.EnterCritical()
		h, ok := k.handlers.pop()
		k.port.ExitCritical()
		if ok {
			h()
			continue
		}
		k.blockTask(k.timerTask, BlockTimerExpiry, 0)
	}
}

// handlerRing is the fixed-capacity dispatch queue of expired timer
// handlers. Pushed from the tick handler, popped by the timer task; no
// allocation on either path.
type handlerRing struct {
	slots [handlerQueueDepth]func()
	head  int
	count int
}

func (r *handlerRing) push(h func()) bool {
	if r.count == len(r.slots) {
		return false
	}
	r.slots[(r.head+r.count)%len(r.slots)] = h
	r.count++
	return true
}

func (r *handlerRing) pop() (func(), bool) {
	if r.count == 0 {
		return nil, false
	}
	h := r.slots[r.head]
	r.slots[r.head] = nil
	r.head = (r.head + 1) % len(r.slots)
	r.count--
	return h, true
}
