package kernel

// Mutex is an ownership-tracking lock with optional priority inheritance.
// Because lock and unlock depend on the identity of the current task, neither
// may be called from interrupt context.
type Mutex struct {
	k         *Kernel
	waitQueue taskQueue

	owner *Task
	// ownerDefaultPriority holds the owner's pre-inheritance priority, or -1
	// when no boost is outstanding. It lives on the mutex, not the task, so
	// inheritance composes across nested mutex holds.
	ownerDefaultPriority int16
	locked               bool
}

// NewMutex creates an unlocked mutex.
func (k *Kernel) NewMutex() *Mutex {
	m := &Mutex{k: k, ownerDefaultPriority: -1}
	m.waitQueue.class = classWait
	return m
}

// Lock acquires the mutex, waiting up to waitTicks system ticks. NoWait
// returns StatusBusy immediately when the mutex is held; MaxWait waits
// forever.
func (m *Mutex) Lock(waitTicks uint32) Status {
	k := m.k
	k.port.EnterCritical()
	cur := k.current

	if mutexPriorityInheritance {
		// Boost the owner to the strictest waiter priority. Only the first
		// boost saves the default; later, stricter waiters overwrite the
		// owner's current priority but not the saved one.
		if m.owner != nil && cur.priority < m.owner.priority {
			if m.ownerDefaultPriority == -1 {
				m.ownerDefaultPriority = int16(m.owner.priority)
			}
			m.owner.priority = cur.priority
		}
	}

	if !m.locked {
		m.locked = true
		m.owner = cur
		k.port.ExitCritical()
		return StatusSuccess
	}
	if waitTicks == NoWait {
		k.port.ExitCritical()
		return StatusBusy
	}

	m.waitQueue.add(cur)
	k.port.ExitCritical()

	k.blockTask(cur, BlockMutex, waitTicks)

	k.port.EnterCritical()
	st := StatusTimeout
	if cur.wakeReason == WakeMutexLocked && m.owner == cur {
		st = StatusSuccess
	}
	k.port.ExitCritical()
	return st
}

// Unlock releases the mutex. Ownership transfers directly to the
// highest-priority waiter when one exists; the mutex never transits through
// the unlocked state in that case. When the new owner has equal or higher
// priority than the caller, the caller yields after leaving the critical
// section.
func (m *Mutex) Unlock() Status {
	k := m.k
	switchNeeded := false

	k.port.EnterCritical()
	cur := k.current

	var st Status
	switch {
	case m.owner != cur:
		st = StatusNotOwner
	case !m.locked:
		st = StatusNotLocked
	default:
		if mutexPriorityInheritance && m.ownerDefaultPriority != -1 {
			m.owner.priority = uint8(m.ownerDefaultPriority)
			m.ownerDefaultPriority = -1
		}
		next := m.waitQueue.pop()
		m.owner = next
		if next != nil {
			k.setReady(next, WakeMutexLocked)
			if next.priority <= cur.priority {
				switchNeeded = true
			}
		} else {
			m.locked = false
		}
		st = StatusSuccess
	}
	k.port.ExitCritical()

	if switchNeeded {
		k.Yield()
	}
	return st
}
