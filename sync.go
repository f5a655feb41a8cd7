// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

const (
	spinMaxSpins  = 50
	spinMaxYields = 10
)

// SpinLock is a three-tier OS-thread-level spinlock (spec §4.I): a short
// busy loop using spin's own tight-spin primitive, a mid loop that yields
// via iox.Backoff between attempts, and a final unbounded blocking spin.
// It is meant for the very short critical sections inside the reactor and
// timer wheel's inner paths, never for anything that can hold the lock
// across a fiber yield point.
type SpinLock struct {
	mu spin.Lock
}

// Lock acquires the lock, busy-spinning briefly before falling back to
// yielding the OS thread.
func (s *SpinLock) Lock() {
	for i := 0; i < spinMaxSpins; i++ {
		if s.mu.Try() {
			return
		}
	}
	var bo iox.Backoff
	for i := 0; i < spinMaxYields; i++ {
		if s.mu.Try() {
			return
		}
		bo.Wait()
	}
	s.mu.Lock()
}

// TryLock attempts to acquire the lock without waiting.
func (s *SpinLock) TryLock() bool { return s.mu.Try() }

// Unlock releases the lock.
func (s *SpinLock) Unlock() { s.mu.Unlock() }

// Mutex is a fiber-level mutual exclusion lock (spec §4.I): acquiring a
// held Mutex blocks the current fiber (via the wait queue), not its OS
// thread, so other fibers on the same consumer keep running.
type Mutex struct {
	locked  atomix.Bool
	ownerID atomix.Uint64
	waiters *waitQueue
}

// NewMutex constructs an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{waiters: newWaitQueue()}
}

func (m *Mutex) tryAcquire(self *Fiber) bool {
	if !m.locked.CompareAndSwap(false, true) {
		return false
	}
	m.ownerID.Store(self.id)
	return true
}

// Lock blocks the current fiber until the mutex is acquired. It is a
// programmer error to call Lock outside fiber context.
func (m *Mutex) Lock() error {
	self := currentFiber()
	if self == nil {
		return ErrNoCurrentFiber
	}
	for !m.tryAcquire(self) {
		if err := m.waiters.parkCurrent(); err != nil {
			return err
		}
	}
	return nil
}

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex) TryLock() bool {
	self := currentFiber()
	if self == nil {
		return false
	}
	return m.tryAcquire(self)
}

// Unlock releases the mutex and wakes one waiter, if any. It is a
// programmer error to unlock a mutex that is not held, or held by a
// different fiber.
func (m *Mutex) Unlock() error {
	if !m.locked.Load() {
		return ErrNotLocked
	}
	self := currentFiber()
	if self == nil || m.ownerID.Load() != self.id {
		return ErrNotOwner
	}
	m.ownerID.Store(0)
	m.locked.Store(false)
	m.waiters.wakeOne()
	return nil
}

// IsLockedByCurrent reports whether the calling fiber currently holds the
// mutex.
func (m *Mutex) IsLockedByCurrent() bool {
	if !m.locked.Load() {
		return false
	}
	self := currentFiber()
	return self != nil && m.ownerID.Load() == self.id
}

// Cond is a fiber-level condition variable, used together with a Mutex
// (spec §4.I).
type Cond struct {
	waiters *waitQueue
}

// NewCond constructs a condition variable.
func NewCond() *Cond {
	return &Cond{waiters: newWaitQueue()}
}

// Wait atomically unlocks m, suspends the current fiber until Signal or
// Broadcast wakes it, and reacquires m before returning. The caller must
// hold m, and should re-check its own predicate in a loop after Wait
// returns, since a woken fiber races every other waiter for the lock.
func (c *Cond) Wait(m *Mutex) error {
	if !m.IsLockedByCurrent() {
		return ErrConditionNotLocked
	}
	if err := m.Unlock(); err != nil {
		return err
	}
	if err := c.waiters.parkCurrent(); err != nil {
		return err
	}
	return m.Lock()
}

// Signal wakes one waiting fiber, if any.
func (c *Cond) Signal() bool { return c.waiters.wakeOne() }

// Broadcast wakes every waiting fiber, returning the count woken.
func (c *Cond) Broadcast() int { return c.waiters.WakeAll() }

// WaitGroup is the fiber-level analogue of sync.WaitGroup (spec §4.I).
type WaitGroup struct {
	counter atomix.Int64
	waiters *waitQueue
}

// NewWaitGroup constructs a WaitGroup with a counter of zero.
func NewWaitGroup() *WaitGroup {
	return &WaitGroup{waiters: newWaitQueue()}
}

// Add adjusts the counter by delta, which may be negative. It is an error
// for the counter to go negative. Waking every waiter when the counter
// reaches zero is race-free because this function is the only writer:
// the increment-then-check happens under a single atomic add.
func (wg *WaitGroup) Add(delta int) error {
	newCount := wg.counter.Add(int64(delta))
	if newCount < 0 {
		wg.counter.Add(int64(-delta))
		return ErrNegativeWaitGroup
	}
	if newCount == 0 {
		wg.waiters.WakeAll()
	}
	return nil
}

// Done is shorthand for Add(-1).
func (wg *WaitGroup) Done() error { return wg.Add(-1) }

// Wait blocks the current fiber until the counter reaches zero.
func (wg *WaitGroup) Wait() error {
	if wg.counter.Load() == 0 {
		return nil
	}
	self := currentFiber()
	if self == nil {
		return ErrNoCurrentFiber
	}
	return wg.waiters.parkCurrent()
}

// Count returns the current counter value.
func (wg *WaitGroup) Count() int64 { return wg.counter.Load() }
