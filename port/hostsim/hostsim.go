//go:build !tinygo

// Package hostsim implements the port contract on top of goroutines so the
// kernel can run, and be tested, as an ordinary Go process.
//
// Each kernel task is backed by a parked goroutine and exactly one task
// goroutine "holds the CPU" at any instant. A context-switch request only
// records the chosen task; the outgoing task completes the handoff at its
// next port touchpoint — critical-section entry or exit, a checkpoint, or
// the idle wait. That mirrors a tail-chained PendSV closely enough for the
// kernel's contract to hold: control returns from a block only after the
// task is next selected to run, and task-identity-dependent code can never
// execute on a task that has been switched out.
//
// Interrupt contexts (the tick injector and any foreign goroutine, such as a
// test) never hold the CPU; their critical sections serialize on the same
// lock that models PRIMASK.
package hostsim

import (
	"runtime"
	"sync"
	"time"

	"tact/port"
)

// Config adjusts the simulated board.
type Config struct {
	// ManualTick disables the periodic ticker; ticks happen only through
	// TriggerTick. This is what deterministic tests want.
	ManualTick bool

	// TickInterval is the ticker period when ManualTick is false.
	// Defaults to one millisecond, matching the kernel tick.
	TickInterval time.Duration
}

// Port is a simulated Cortex-M-shaped execution environment.
type Port struct {
	mu   sync.Mutex
	cond *sync.Cond

	cpu     *taskCtx
	pending *taskCtx
	byGoid  map[uint64]*taskCtx

	tick   func()
	manual bool
	period time.Duration

	done   chan struct{}
	closed bool
}

// New creates a simulated port.
func New(cfg Config) *Port {
	p := &Port{
		byGoid: make(map[uint64]*taskCtx),
		manual: cfg.ManualTick,
		period: cfg.TickInterval,
		done:   make(chan struct{}),
	}
	if p.period == 0 {
		p.period = time.Millisecond
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

type taskCtx struct {
	p    *Port
	name string
	gate chan struct{}
	run  func()
}

func (c *taskCtx) Name() string { return c.name }

// park waits until the context is handed the CPU. The goroutine exits when
// the port closes while it is parked.
func (c *taskCtx) park() {
	select {
	case <-c.gate:
	case <-c.p.done:
		runtime.Goexit()
	}
}

// wake grants the CPU. The gate holds one token and at most one handoff
// targets a context at a time, so the send cannot block.
func (c *taskCtx) wake() {
	c.gate <- struct{}{}
}

func (c *taskCtx) main() {
	p := c.p
	gid := goid()
	p.mu.Lock()
	p.byGoid[gid] = c
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.byGoid, gid)
		p.mu.Unlock()
	}()

	c.park()
	c.run()

	// Task entry returned. The hardware exit stub spins until preempted;
	// idle-wait is the host analog.
	for {
		p.Idle()
	}
}

// self returns the task context bound to the calling goroutine, or nil for
// interrupt/foreign contexts. The caller holds mu.
func (p *Port) self() *taskCtx {
	return p.byGoid[goid()]
}

// handoff completes a pending context switch: the chosen task becomes the
// CPU holder and is woken. The caller holds mu, is the current CPU holder,
// and must park itself after releasing mu.
func (p *Port) handoff() {
	next := p.pending
	p.pending = nil
	p.cpu = next
	next.wake()
}

// switchDue reports whether c must give up the CPU. The caller holds mu.
func (p *Port) switchDue(c *taskCtx) bool {
	return c != nil && p.cpu == c && p.pending != nil && p.pending != c
}

// EnterCritical masks simulated interrupts. A task that lost the CPU to a
// deferred switch hands it over here, before any kernel state is touched, so
// kernel code never runs on behalf of a task that was switched out.
func (p *Port) EnterCritical() {
	p.mu.Lock()
	c := p.self()
	if p.closed && c != nil {
		p.mu.Unlock()
		runtime.Goexit()
	}
	for p.switchDue(c) {
		p.handoff()
		p.mu.Unlock()
		c.park()
		p.mu.Lock()
	}
}

// ExitCritical unmasks simulated interrupts and takes a pending switch when
// the caller is the task being switched out.
func (p *Port) ExitCritical() {
	c := p.self()
	if p.switchDue(c) {
		p.handoff()
		p.mu.Unlock()
		c.park()
		return
	}
	p.mu.Unlock()
}

// NewTask spawns the backing goroutine, parked until first scheduled.
func (p *Port) NewTask(name string, _ uint32, entry func()) port.Task {
	c := &taskCtx{p: p, name: name, gate: make(chan struct{}, 1), run: entry}
	go c.main()
	return c
}

// SwitchTo records the next CPU holder. The kernel calls this inside a
// critical section, so mu is held.
func (p *Port) SwitchTo(t port.Task) {
	next := t.(*taskCtx)
	if next == p.cpu {
		p.pending = nil
		return
	}
	p.pending = next
	p.cond.Broadcast()
}

// Trap runs fn on the calling goroutine. The simulated CPU has no privilege
// levels; the supervisor call collapses to a plain call whose critical
// section behaves exactly as it would in a handler.
func (p *Port) Trap(fn func()) {
	fn()
}

// StartTick arms the tick source.
func (p *Port) StartTick(tick func()) {
	p.mu.Lock()
	p.tick = tick
	p.mu.Unlock()
	if p.manual {
		return
	}
	go func() {
		tk := time.NewTicker(p.period)
		defer tk.Stop()
		for {
			select {
			case <-p.done:
				return
			case <-tk.C:
				tick()
			}
		}
	}()
}

// TriggerTick injects one tick interrupt. Safe from any goroutine.
func (p *Port) TriggerTick() {
	p.mu.Lock()
	tick := p.tick
	p.mu.Unlock()
	if tick != nil {
		tick()
	}
}

// Run hands the CPU to the first task and blocks until Close.
func (p *Port) Run(first port.Task) {
	c := first.(*taskCtx)
	p.mu.Lock()
	p.cpu = c
	c.wake()
	p.mu.Unlock()
	<-p.done
}

// Idle waits until a context switch is requested, then takes it. Foreign
// goroutines return immediately.
func (p *Port) Idle() {
	p.mu.Lock()
	c := p.self()
	if c == nil {
		p.mu.Unlock()
		return
	}
	for {
		if p.closed {
			p.mu.Unlock()
			runtime.Goexit()
		}
		if p.switchDue(c) {
			p.handoff()
			p.mu.Unlock()
			c.park()
			return
		}
		p.cond.Wait()
	}
}

// Checkpoint is the explicit preemption point: a compute-bound task loop
// calls it the way hardware would take an asynchronous SysTick.
func (p *Port) Checkpoint() {
	p.EnterCritical()
	p.ExitCritical()
}

// Close tears the simulation down: Run returns and parked task goroutines
// exit. Idempotent.
func (p *Port) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.cond.Broadcast()
	p.mu.Unlock()
}
