package kernel

import "sync"

// FaultInfo describes a fatal kernel or task fault.
type FaultInfo struct {
	Task  string
	Value any
	Stack []byte
}

type faultState struct {
	once    sync.Once
	active  bool
	handler func(FaultInfo)
}

// SetFaultHandler installs a process-wide fault hook, invoked at most once on
// the first fault. The kernel itself never logs; this hook is the only place
// an application may report a fault. The faulted task then parks while the
// other tasks keep being scheduled. The handler must not block on kernel
// primitives.
func (k *Kernel) SetFaultHandler(fn func(FaultInfo)) {
	k.port.EnterCritical()
	k.fault.handler = fn
	k.port.ExitCritical()
}

// InFault reports whether a fault has been recorded.
func (k *Kernel) InFault() bool {
	k.port.EnterCritical()
	a := k.fault.active
	k.port.ExitCritical()
	return a
}

func (k *Kernel) triggerFault(info FaultInfo) {
	k.fault.once.Do(func() {
		k.port.EnterCritical()
		k.fault.active = true
		fn := k.fault.handler
		k.port.ExitCritical()
		if fn != nil {
			fn(info)
		}
	})
}
