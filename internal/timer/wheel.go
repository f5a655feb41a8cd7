// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package timer implements the hashed timing wheel each consumer uses to
// schedule fiber wakeups (spec §4.G). Tick is single-threaded — it must
// only ever be called by the wheel's owning consumer goroutine — while
// AddTimer, Refresh, Cancel, and TriggerNow may be called from any
// goroutine.
package timer

import (
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/fiber/internal/lfqueue"
)

const maxBatch = 100

// Timer is one scheduled callback. The zero value is not usable; obtain
// one from Wheel.AddTimer.
type Timer struct {
	timeoutMs int64
	rotations int
	cb        func()
	repeat    atomix.Bool
	canceled  atomix.Bool
}

// Canceled reports whether the timer has fired its last callback and will
// not fire again.
func (t *Timer) Canceled() bool { return t.canceled.Load() }

// Wheel is a hashed timing wheel of fixed slot count and tick interval.
type Wheel struct {
	slots    int
	tickMs   int64
	buckets  [][]*Timer
	current  int
	pending  *lfqueue.Queue[*Timer]
	lastTick time.Time
	running  atomix.Bool
}

// NewWheel constructs a wheel with the given slot count and tick interval
// in milliseconds (spec defaults: 256 slots, 100ms tick).
func NewWheel(slots, tickMs int) *Wheel {
	w := &Wheel{
		slots:    slots,
		tickMs:   int64(tickMs),
		buckets:  make([][]*Timer, slots),
		pending:  lfqueue.New[*Timer](),
		lastTick: time.Now(),
	}
	w.running.Store(true)
	return w
}

// AddTimer schedules cb to run after ms milliseconds (once, or repeatedly
// every ms if repeat is true), returning a handle usable with Refresh,
// Cancel, and TriggerNow. It returns nil if the wheel has been stopped.
func (w *Wheel) AddTimer(ms int64, cb func(), repeat bool) *Timer {
	if !w.running.Load() {
		return nil
	}
	t := &Timer{timeoutMs: ms, cb: cb}
	t.repeat.Store(repeat)
	w.pending.Push(t)
	return t
}

// Refresh cancels timer and schedules a fresh timer with the same
// callback, timeout, and repeat flag, per SPEC_FULL.md §11.1. It returns
// nil if timer was already canceled or has already fired.
func (w *Wheel) Refresh(t *Timer) *Timer {
	if t == nil || !t.canceled.CompareAndSwap(false, true) {
		return nil
	}
	return w.AddTimer(t.timeoutMs, t.cb, t.repeat.Load())
}

// TriggerNow cancels timer and runs its callback synchronously on the
// calling goroutine, per SPEC_FULL.md §11.1.
func (w *Wheel) TriggerNow(t *Timer) {
	if t == nil {
		return
	}
	t.canceled.Store(true)
	runCallback(t.cb)
}

// Cancel marks timer so it will not fire again. A timer already mid-fire
// on the owning goroutine still completes that one callback.
func (w *Wheel) Cancel(t *Timer) {
	if t != nil {
		t.canceled.Store(true)
	}
}

// Stop marks the wheel as no longer accepting new timers. Timers already
// queued continue to be processed by subsequent Tick calls.
func (w *Wheel) Stop() { w.running.Store(false) }

func (w *Wheel) ticksFor(ms int64) (ticks int64, rotations int) {
	ticks = ms / w.tickMs
	if ticks == 0 {
		ticks = 1
	}
	rotations = int(ticks / int64(w.slots))
	return ticks, rotations
}

func (w *Wheel) targetSlot(ticks int64) int {
	return (w.current + int(ticks)) % w.slots
}

// Tick advances the wheel by one interval if at least one tick interval
// (minus a 1ms tolerance) has elapsed since the last call, processing
// pending additions and any timers due in the current slot. It is a
// no-op otherwise, so callers may call it on every idle pass without
// needing their own rate limiting.
func (w *Wheel) Tick() {
	now := time.Now()
	elapsed := now.Sub(w.lastTick).Milliseconds()
	const toleranceMs = 1
	if elapsed+toleranceMs < w.tickMs {
		return
	}

	w.processPending()

	bucket := w.buckets[w.current]
	kept := bucket[:0]
	for _, t := range bucket {
		if t.canceled.Load() {
			continue
		}
		if t.rotations > 0 {
			t.rotations--
			kept = append(kept, t)
			continue
		}

		runCallback(t.cb)

		shouldRepeat := t.repeat.Load() && !t.canceled.Load()
		if !shouldRepeat {
			t.canceled.Store(true)
			continue
		}
		ticks, rotations := w.ticksFor(t.timeoutMs)
		target := w.targetSlot(ticks)
		t.rotations = rotations
		if target != w.current {
			w.buckets[target] = append(w.buckets[target], t)
		} else {
			t.rotations--
			kept = append(kept, t)
		}
	}
	w.buckets[w.current] = kept

	w.current = (w.current + 1) % w.slots
	w.lastTick = now
}

func (w *Wheel) processPending() {
	for processed := 0; processed < maxBatch; processed++ {
		t, ok := w.pending.Pop()
		if !ok {
			return
		}
		if t.canceled.Load() {
			continue
		}
		ticks, rotations := w.ticksFor(t.timeoutMs)
		target := w.targetSlot(ticks)
		t.rotations = rotations
		w.buckets[target] = append(w.buckets[target], t)
	}
}

// NextTimeoutMs returns how many milliseconds remain until the next tick
// is due, for a caller (the owning consumer's idle path) deciding how
// long to block on its I/O reactor or wake channel.
func (w *Wheel) NextTimeoutMs() int {
	elapsed := time.Since(w.lastTick).Milliseconds()
	remaining := w.tickMs - elapsed
	if remaining <= 0 {
		return 0
	}
	return int(remaining)
}

func runCallback(cb func()) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logTimerPanic(r)
		}
	}()
	cb()
}
