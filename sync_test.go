// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package fiber_test

import (
	"testing"

	"code.hybscloud.com/fiber"
)

func TestMutexExclusion(t *testing.T) {
	const (
		fibers = 16
		iters  = 10000
	)
	skipRace(t)
	code := fiber.Main(func() int {
		m := fiber.NewMutex()
		wg := fiber.NewWaitGroup()
		counter := 0
		for i := 0; i < fibers; i++ {
			_ = wg.Add(1)
			fiber.Go(func() {
				defer wg.Done()
				for j := 0; j < iters; j++ {
					if err := m.Lock(); err != nil {
						t.Error(err)
						return
					}
					counter++
					if err := m.Unlock(); err != nil {
						t.Error(err)
						return
					}
				}
			})
		}
		_ = wg.Wait()
		if counter != fibers*iters {
			t.Errorf("counter = %d, want %d", counter, fibers*iters)
		}
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestMutexTryLock(t *testing.T) {
	code := fiber.Main(func() int {
		m := fiber.NewMutex()
		if !m.TryLock() {
			t.Error("TryLock on unlocked mutex should succeed")
		}
		if m.TryLock() {
			t.Error("TryLock on already-locked mutex should fail")
		}
		if err := m.Unlock(); err != nil {
			t.Error(err)
		}
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestUnlockErrors(t *testing.T) {
	code := fiber.Main(func() int {
		m := fiber.NewMutex()
		if err := m.Unlock(); err != fiber.ErrNotLocked {
			t.Errorf("Unlock on unheld mutex = %v, want ErrNotLocked", err)
		}

		_ = m.Lock()
		done := fiber.NewWaitGroup()
		_ = done.Add(1)
		fiber.Go(func() {
			defer done.Done()
			if err := m.Unlock(); err != fiber.ErrNotOwner {
				t.Errorf("Unlock by non-owner = %v, want ErrNotOwner", err)
			}
		})
		_ = done.Wait()
		_ = m.Unlock()
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestCondSignalWakesOneWaiter(t *testing.T) {
	code := fiber.Main(func() int {
		m := fiber.NewMutex()
		c := fiber.NewCond()
		ready := false
		wg := fiber.NewWaitGroup()
		_ = wg.Add(1)

		fiber.Go(func() {
			defer wg.Done()
			_ = m.Lock()
			for !ready {
				if err := c.Wait(m); err != nil {
					t.Error(err)
					break
				}
			}
			_ = m.Unlock()
		})

		_ = fiber.Yield()

		_ = m.Lock()
		ready = true
		_ = m.Unlock()
		c.Signal()

		_ = wg.Wait()
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestCondWaitForNotified(t *testing.T) {
	code := fiber.Main(func() int {
		m := fiber.NewMutex()
		c := fiber.NewCond()
		ready := false
		wg := fiber.NewWaitGroup()
		_ = wg.Add(1)

		fiber.Go(func() {
			defer wg.Done()
			_ = m.Lock()
			for !ready {
				notified, err := c.WaitFor(m, 5000)
				if err != nil {
					t.Error(err)
					break
				}
				if !ready && !notified {
					t.Error("WaitFor returned false (timeout) before Signal was sent")
				}
			}
			_ = m.Unlock()
		})

		_ = fiber.Yield()

		_ = m.Lock()
		ready = true
		_ = m.Unlock()
		c.Signal()

		_ = wg.Wait()
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestCondWaitForTimeout(t *testing.T) {
	code := fiber.Main(func() int {
		m := fiber.NewMutex()
		c := fiber.NewCond()

		_ = m.Lock()
		notified, err := c.WaitFor(m, 20)
		if err != nil {
			t.Fatal(err)
		}
		if notified {
			t.Error("WaitFor should have timed out with no Signal/Broadcast ever sent")
		}
		if !m.IsLockedByCurrent() {
			t.Error("WaitFor must reacquire the mutex before returning, even on timeout")
		}
		_ = m.Unlock()
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestWaitGroupRejectsNegativeCounter(t *testing.T) {
	code := fiber.Main(func() int {
		wg := fiber.NewWaitGroup()
		if err := wg.Add(-1); err != fiber.ErrNegativeWaitGroup {
			t.Errorf("Add(-1) on zero WaitGroup = %v, want ErrNegativeWaitGroup", err)
		}
		if wg.Count() != 0 {
			t.Errorf("Count() = %d, want 0 after rejected Add", wg.Count())
		}
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestSpinLock(t *testing.T) {
	var s fiber.SpinLock
	if !s.TryLock() {
		t.Fatal("TryLock on unlocked SpinLock should succeed")
	}
	if s.TryLock() {
		t.Fatal("TryLock on locked SpinLock should fail")
	}
	s.Unlock()
	s.Lock()
	s.Unlock()
}
