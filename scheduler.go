// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package fiber

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// SchedulerState is one of the lifecycle states of spec §3/§4.F.
type SchedulerState int32

const (
	SchedulerStopped SchedulerState = iota
	SchedulerRunning
	SchedulerStopping
)

// Scheduler owns a fixed pool of consumers and their lifecycle. The native
// runtime models it as a process-wide singleton (spec §4.F); this port
// keeps that shape for wake/reschedule routing — see activeScheduler below
// — while still letting callers construct more than one instance if they
// take care never to run two at once.
type Scheduler struct {
	cfg       Config
	state     atomix.Int32
	consumers []*consumer
	stopCh    chan struct{}
}

// activeScheduler is the scheduler that wait queues, timers, and the I/O
// reactor resubmit woken fibers to. It is set by Run and cleared by Run
// once Stop has let it tear every consumer down, standing in for the native GetScheduler()/GetOrCreateMultiThreadScheduler
// singleton accessors.
var activeScheduler atomic.Pointer[Scheduler]

// NewScheduler constructs a scheduler with N consumers (spec §4.F default:
// hardware-thread count, or 4). It does not start the consumers; call Run.
func NewScheduler(opts ...Option) *Scheduler {
	cfg := newConfig(opts...)
	s := &Scheduler{cfg: cfg, stopCh: make(chan struct{})}
	s.consumers = make([]*consumer, cfg.NumConsumer)
	for i := range s.consumers {
		s.consumers[i] = newConsumer(int64(i), s)
	}
	return s
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() SchedulerState {
	return SchedulerState(s.state.Load())
}

// NumConsumer returns the number of worker consumers in the pool.
func (s *Scheduler) NumConsumer() int { return len(s.consumers) }

// Run starts every consumer and blocks the calling goroutine (which need
// not be a fiber) until Stop transitions the scheduler to STOPPING, then
// joins every consumer and returns. It returns ErrSchedulerRunning
// without blocking if the scheduler is already running or stopping.
func (s *Scheduler) Run() error {
	if !s.state.CompareAndSwap(int32(SchedulerStopped), int32(SchedulerRunning)) {
		return ErrSchedulerRunning
	}
	activeScheduler.Store(s)
	for _, c := range s.consumers {
		c.start()
	}

	<-s.stopCh

	// Wake every fiber parked on a reactor before tearing consumers down,
	// so a fiber blocked in Accept/Read/Write at shutdown gets a
	// cancellation result instead of leaking its goroutine (spec §8 S6).
	for _, c := range s.consumers {
		if c.reactor != nil {
			c.reactor.CancelAll()
		}
	}
	for _, c := range s.consumers {
		c.stop()
	}
	if activeScheduler.Load() == s {
		activeScheduler.Store(nil)
	}
	s.state.Store(int32(SchedulerStopped))
	return nil
}

// Stop transitions the scheduler to STOPPING, unblocking Run.
func (s *Scheduler) Stop() {
	if s.state.CompareAndSwap(int32(SchedulerRunning), int32(SchedulerStopping)) {
		close(s.stopCh)
	}
}

// scheduleWoken resubmits a fiber a wait queue, timer, or reactor has just
// woken, via the process's active scheduler. It is a no-op if no scheduler
// is currently running, which can only happen if the caller raced a full
// shutdown.
func scheduleWoken(f *Fiber) {
	s := activeScheduler.Load()
	if s == nil {
		return
	}
	_ = s.ScheduleImmediate(f)
}

// ScheduleImmediate places fiber onto a consumer's run queue per the
// placement policy of spec §4.F: a fiber with a sticky consumer id is
// routed only there — required, since rerouting it would violate the
// sticky invariant — and ErrStickyViolation is returned if that consumer
// has stopped; otherwise the spawning fiber's own
// consumer is preferred; otherwise the target is chosen by hashing the
// fiber id across the pool, which spec §4.F prefers over a shortest-queue
// scan to avoid the "pick your own producer" starvation pathology under
// contention.
func (s *Scheduler) ScheduleImmediate(f *Fiber) error {
	// Stopping still accepts work: it is the window in which Run's
	// shutdown sweep cancels reactor waiters and expects them to be
	// resubmitted and drained, not rejected.
	if s.State() == SchedulerStopped {
		return ErrSchedulerStopped
	}

	n := int64(len(s.consumers))
	if id := f.ConsumerID(); id >= 0 && id < n {
		c := s.consumers[id]
		if !c.running.Load() {
			// The sticky target has stopped. consumer.runq is the
			// unbounded lfqueue.Queue[*Fiber] (consumer.go:25), which
			// never rejects a push on capacity, so this branch is only
			// ever reached when the target consumer is genuinely gone —
			// exactly the case spec §4.F forbids rerouting for.
			// Retrying against a substitute consumer would also
			// livelock: during sequential shutdown in Run, a residual
			// fiber sticky to the last-drained consumer could spin here
			// forever, since every other consumer is already stopped
			// too and SchedulerStopped is only set after this very call
			// returns.
			return ErrStickyViolation
		}
		c.schedule(f)
		return nil
	}

	idx := s.selectPreferredConsumer(f, n)
	var bo iox.Backoff
	for {
		c := s.consumers[idx]
		if c.running.Load() {
			c.schedule(f)
			return nil
		}
		// this fiber has no sticky id, so falling through to any
		// consumer still accepting work is honoring a preference, not
		// violating a requirement.
		if s.State() == SchedulerStopped {
			return ErrSchedulerStopped
		}
		idx = (idx + 1) % n
		bo.Wait()
	}
}

// selectPreferredConsumer picks a consumer for a fiber with no sticky id:
// the spawning fiber's own consumer if it has one, otherwise a hash of
// the fiber id across the pool.
func (s *Scheduler) selectPreferredConsumer(f *Fiber, n int64) int64 {
	if caller := currentFiber(); caller != nil {
		if id := caller.ConsumerID(); id >= 0 && id < n {
			return id
		}
	}
	return int64(f.id % uint64(n))
}

// Go schedules a new fiber on the active scheduler. It is the runtime's
// `go` statement analogue (spec §6).
func Go(fn func()) *Fiber {
	return GoSize(fn, 0)
}

// GoSize is Go with an explicit stack size hint.
func GoSize(fn func(), stackSize int) *Fiber {
	f := Create(fn, stackSize)
	s := activeScheduler.Load()
	if s == nil {
		panic("fiber: Go called with no running scheduler")
	}
	if err := s.ScheduleImmediate(f); err != nil {
		panic(err)
	}
	return f
}

// Main runs worker as a fiber on a fresh default-configured scheduler,
// waits for it to finish, stops the scheduler, and returns worker's exit
// code. It is the Go-idiomatic equivalent of the native FIBER_MAIN macro
// that wraps main() (spec §11.1): Go has no macros, so this is an ordinary
// function instead.
func Main(worker func() int) int {
	s := NewScheduler()
	var exitCode int
	go func() {
		s.Run()
	}()
	// Block until the scheduler has installed itself before scheduling,
	// since Go's sticky/caller-based placement needs a live pool.
	for activeScheduler.Load() != s {
	}
	done := make(chan struct{})
	Goo(s, func() {
		exitCode = worker()
		close(done)
		s.Stop()
	})
	<-done
	return exitCode
}

// Goo schedules fn as a fiber on scheduler s explicitly, for callers that
// manage more than one Scheduler instance themselves.
func Goo(s *Scheduler, fn func()) *Fiber {
	f := Create(fn, 0)
	if err := s.ScheduleImmediate(f); err != nil {
		panic(err)
	}
	return f
}
