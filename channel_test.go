// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package fiber_test

import (
	"testing"

	"code.hybscloud.com/fiber"
)

func TestChannelSendRecv(t *testing.T) {
	code := fiber.Main(func() int {
		ch := fiber.NewChannel[int](4)
		if err := ch.Send(42); err != nil {
			t.Error(err)
		}
		v, err := ch.Recv()
		if err != nil {
			t.Error(err)
		}
		if v != 42 {
			t.Errorf("Recv() = %d, want 42", v)
		}
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestChannelProducerConsumer(t *testing.T) {
	const n = 200
	skipRace(t)
	code := fiber.Main(func() int {
		ch := fiber.NewChannel[int](8)
		wg := fiber.NewWaitGroup()
		_ = wg.Add(2)

		fiber.Go(func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				if err := ch.Send(i); err != nil {
					t.Error(err)
					return
				}
			}
		})

		sum := 0
		fiber.Go(func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				v, err := ch.Recv()
				if err != nil {
					t.Error(err)
					return
				}
				sum += v
			}
		})

		_ = wg.Wait()
		want := n * (n - 1) / 2
		if sum != want {
			t.Errorf("sum = %d, want %d", sum, want)
		}
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestChannelCloseWakesWaiters(t *testing.T) {
	code := fiber.Main(func() int {
		ch := fiber.NewChannel[int](2)
		wg := fiber.NewWaitGroup()
		_ = wg.Add(1)

		fiber.Go(func() {
			defer wg.Done()
			if _, err := ch.Recv(); err != fiber.ErrClosed {
				t.Errorf("Recv on closed empty channel = %v, want ErrClosed", err)
			}
		})

		_ = fiber.Yield()
		ch.Close()
		_ = wg.Wait()

		if !ch.IsClosed() {
			t.Error("IsClosed() = false after Close")
		}
		if err := ch.Send(1); err != fiber.ErrClosed {
			t.Errorf("Send on closed channel = %v, want ErrClosed", err)
		}
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}

func TestChannelTrySendTryRecv(t *testing.T) {
	code := fiber.Main(func() int {
		ch := fiber.NewChannel[int](2)
		if err := ch.TrySend(1); err != nil {
			t.Error(err)
		}
		if err := ch.TrySend(2); err != nil {
			t.Error(err)
		}
		v1, err := ch.TryRecv()
		if err != nil || v1 != 1 {
			t.Errorf("TryRecv() = (%d, %v), want (1, nil)", v1, err)
		}
		v2, err := ch.TryRecv()
		if err != nil || v2 != 2 {
			t.Errorf("TryRecv() = (%d, %v), want (2, nil)", v2, err)
		}
		return 0
	})
	if code != 0 {
		t.Fatalf("Main returned %d, want 0", code)
	}
}
