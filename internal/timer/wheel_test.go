// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package timer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/fiber/internal/timer"
)

func TestWheelFiresOnce(t *testing.T) {
	w := timer.NewWheel(16, 10)
	var fired atomic.Int32
	w.AddTimer(30, func() { fired.Add(1) }, false)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && fired.Load() == 0 {
		w.Tick()
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("fired = %d, want 1", fired.Load())
	}

	// give it more ticks; a non-repeating timer must not fire again.
	for i := 0; i < 50; i++ {
		w.Tick()
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("fired = %d after extra ticks, want 1", fired.Load())
	}
}

func TestWheelCancel(t *testing.T) {
	w := timer.NewWheel(16, 10)
	var fired atomic.Int32
	h := w.AddTimer(30, func() { fired.Add(1) }, false)
	w.Cancel(h)

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		w.Tick()
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() != 0 {
		t.Fatalf("canceled timer fired %d times, want 0", fired.Load())
	}
}

func TestWheelRepeat(t *testing.T) {
	w := timer.NewWheel(16, 10)
	var fired atomic.Int32
	h := w.AddTimer(20, func() { fired.Add(1) }, true)

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) && fired.Load() < 3 {
		w.Tick()
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() < 3 {
		t.Fatalf("repeating timer fired %d times in 300ms, want >= 3", fired.Load())
	}
	w.Cancel(h)
}

func TestWheelTriggerNow(t *testing.T) {
	w := timer.NewWheel(16, 10)
	var fired atomic.Int32
	h := w.AddTimer(10_000, func() { fired.Add(1) }, false)
	w.TriggerNow(h)
	if fired.Load() != 1 {
		t.Fatalf("fired = %d, want 1", fired.Load())
	}
	if !h.Canceled() {
		t.Fatal("triggered timer should be canceled")
	}
}

func TestWheelRefresh(t *testing.T) {
	w := timer.NewWheel(16, 10)
	var fired atomic.Int32
	h := w.AddTimer(20, func() { fired.Add(1) }, false)
	h2 := w.Refresh(h)
	if h2 == nil {
		t.Fatal("Refresh returned nil")
	}
	if !h.Canceled() {
		t.Fatal("original timer should be canceled after refresh")
	}

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) && fired.Load() == 0 {
		w.Tick()
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("refreshed timer fired %d times, want 1", fired.Load())
	}
}

func TestWheelNextTimeoutMs(t *testing.T) {
	w := timer.NewWheel(16, 100)
	if got := w.NextTimeoutMs(); got < 0 || got > 100 {
		t.Fatalf("NextTimeoutMs() = %d, want in [0, 100]", got)
	}
}

func TestWheelCallbackPanicRecovered(t *testing.T) {
	w := timer.NewWheel(16, 10)
	var after atomic.Int32
	w.AddTimer(10, func() { panic("boom") }, false)
	w.AddTimer(10, func() { after.Add(1) }, false)

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) && after.Load() == 0 {
		w.Tick()
		time.Sleep(5 * time.Millisecond)
	}
	if after.Load() != 1 {
		t.Fatalf("sibling timer did not fire after panicking timer, after = %d", after.Load())
	}
}
