// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package fiber

// WaitFor is Wait with a deadline (spec §4.I's wait_for): it behaves
// exactly like Wait, but also arms a timer on the calling fiber's
// consumer wheel that independently tries to wake it if timeoutMs
// elapses first. It reports true if woken by Signal or Broadcast, false
// if the timeout won the race instead. As with Wait, the caller should
// re-check its predicate afterward either way, since a woken fiber still
// races every other waiter for the lock, and a spurious wake is always a
// legal outcome. A non-positive timeoutMs is equivalent to Wait.
//
// The timer and a genuine notify are reconciled by waitqueue.go's
// per-fiber wake claim (fiber.go's armWake/claimWake): whichever side
// wins the CAS is the only one that ever resumes the fiber, so this
// needs no reactor-style private queue the way io.go's ioWait does —
// Cond's waiters queue stays shared and Signal/Broadcast are untouched.
func (c *Cond) WaitFor(m *Mutex, timeoutMs int64) (bool, error) {
	if !m.IsLockedByCurrent() {
		return false, ErrConditionNotLocked
	}
	con := currentConsumer()
	if con == nil {
		return false, ErrWaitOutsideFiber
	}
	if err := m.Unlock(); err != nil {
		return false, err
	}
	notified, err := c.waiters.parkCurrentTimed(con.wheel, timeoutMs)
	if err != nil {
		return false, err
	}
	if lerr := m.Lock(); lerr != nil {
		return notified, lerr
	}
	return notified, nil
}
