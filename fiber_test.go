// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package fiber_test

import (
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/fiber"
)

func TestMainRunsWorkerAndReturnsExitCode(t *testing.T) {
	code := fiber.Main(func() int {
		return 7
	})
	if code != 7 {
		t.Fatalf("Main returned %d, want 7", code)
	}
}

func TestGoSpawnsConcurrentFibers(t *testing.T) {
	const n = 50
	code := fiber.Main(func() int {
		wg := fiber.NewWaitGroup()
		var ran atomic.Int32
		for i := 0; i < n; i++ {
			if err := wg.Add(1); err != nil {
				t.Error(err)
			}
			fiber.Go(func() {
				defer wg.Done()
				ran.Add(1)
			})
		}
		if err := wg.Wait(); err != nil {
			t.Error(err)
		}
		if int(ran.Load()) != n {
			t.Errorf("ran = %d, want %d", ran.Load(), n)
		}
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestYieldReturnsControlWithoutFinishing(t *testing.T) {
	code := fiber.Main(func() int {
		var steps []int
		wg := fiber.NewWaitGroup()
		_ = wg.Add(1)
		fiber.Go(func() {
			defer wg.Done()
			steps = append(steps, 1)
			_ = fiber.Yield()
			steps = append(steps, 2)
		})
		_ = wg.Wait()
		if len(steps) != 2 || steps[0] != 1 || steps[1] != 2 {
			t.Errorf("steps = %v, want [1 2]", steps)
		}
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestCurrentOutsideFiberIsNil(t *testing.T) {
	if f := fiber.Current(); f != nil {
		t.Fatalf("Current() outside fiber context = %v, want nil", f)
	}
}

func TestSleepDuration(t *testing.T) {
	code := fiber.Main(func() int {
		start := time.Now()
		if err := fiber.Sleep(30); err != nil {
			t.Error(err)
		}
		elapsed := time.Since(start).Milliseconds()
		if elapsed < 30 {
			t.Errorf("slept %dms, want >= 30ms", elapsed)
		}
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}
