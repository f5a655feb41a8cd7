// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package fiber

// Sleep suspends the current fiber for about ms milliseconds, counted in
// whole timer-wheel ticks (ms divided by the tick interval, rounded down,
// at least one) from the wheel's next tick, so a duration that is not a
// multiple of the tick interval can end early by up to one tick: it
// registers a one-shot timer that resubmits the fiber to the scheduler,
// then block-yields (spec §4.C: "sleep(ms) is a convenience: register a
// one-shot timer that schedules the current fiber, then block_yield").
func Sleep(ms int64) error {
	self := currentFiber()
	if self == nil {
		return ErrNoCurrentFiber
	}
	c := currentConsumer()
	if c == nil {
		return ErrNoCurrentFiber
	}
	c.wheel.AddTimer(ms, func() {
		scheduleWoken(self)
	}, false)
	return blockYield()
}
