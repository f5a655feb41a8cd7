// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/fiber/internal/lfqueue"
	"code.hybscloud.com/fiber/internal/timer"
)

// waitQueue is the thin wrapper over the tagged lock-free FIFO that every
// synchronization primitive in the runtime is built on (spec §4.D).
type waitQueue struct {
	q *lfqueue.Queue[*Fiber]
}

func newWaitQueue() *waitQueue {
	return &waitQueue{q: lfqueue.New[*Fiber]()}
}

// parkCurrent pushes the calling fiber onto the queue and then blocks it.
// The push happens strictly before the block so that a concurrent wake
// can never miss the waiter (spec §4.D). armWake resets the fiber's wake
// claim before the push so any wakeOne/WakeAll that later pops it is free
// to claim it.
func (w *waitQueue) parkCurrent() error {
	self := currentFiber()
	if self == nil {
		return ErrNoCurrentFiber
	}
	self.armWake()
	w.q.Push(self)
	return blockYield()
}

// parkCurrentTimed is parkCurrent racing a deadline: a timer on wheel
// independently tries to claim the fiber's wake if timeoutMs elapses
// before some wakeOne/WakeAll call claims it first. Only the winner of
// that CAS ever calls scheduleWoken, so the fiber is resumed exactly
// once regardless of which side fires first. It reports whether the
// eventual wake came from the queue (true) or the timeout (false). A
// non-positive timeoutMs behaves exactly like parkCurrent.
func (w *waitQueue) parkCurrentTimed(wheel *timer.Wheel, timeoutMs int64) (bool, error) {
	self := currentFiber()
	if self == nil {
		return false, ErrNoCurrentFiber
	}
	self.armWake()
	w.q.Push(self)

	var timedOut atomix.Bool
	var t *timer.Timer
	if timeoutMs > 0 && wheel != nil {
		t = wheel.AddTimer(timeoutMs, func() {
			if self.claimWake() {
				timedOut.Store(true)
				scheduleWoken(self)
			}
		}, false)
	}

	if err := blockYield(); err != nil {
		return false, err
	}
	if t != nil {
		wheel.Cancel(t)
	}
	return !timedOut.Load(), nil
}

// wakeOne dequeues waiters until it finds one this call wins the wake
// claim for, and submits it to the scheduler for immediate placement. A
// waiter that lost its claim to a timeout (parkCurrentTimed) is already
// scheduled, so it is silently dropped and the next entry is tried. It
// reports whether a fiber was actually woken.
func (w *waitQueue) wakeOne() bool {
	for {
		f, ok := w.q.Pop()
		if !ok {
			return false
		}
		if f.claimWake() {
			scheduleWoken(f)
			return true
		}
	}
}

// WakeAll dequeues every waiter currently queued and resubmits those this
// call wins the wake claim for, returning the count actually woken. It is
// exported so a *waitQueue satisfies internal/ioreactor's Notifier
// interface directly, with no adapter type needed at the package
// boundary.
func (w *waitQueue) WakeAll() int {
	n := 0
	for {
		f, ok := w.q.Pop()
		if !ok {
			return n
		}
		if f.claimWake() {
			scheduleWoken(f)
			n++
		}
	}
}

func (w *waitQueue) empty() bool { return w.q.Empty() }
