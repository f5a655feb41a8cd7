// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fiber provides an M:N user-space fiber (stackful coroutine)
// runtime: application code writes straight-line, blocking-looking logic
// while a fixed pool of worker goroutines multiplexes many such flows.
//
// # Architecture
//
//   - Context: one goroutine-pair rendezvous per fiber standing in for a
//     stack switch. [internal/lfqueue] backs every run queue and wait
//     queue with the same tagged lock-free Michael-Scott FIFO.
//   - Fiber: per-task state machine ({READY, RUNNING, SUSPENDED, BLOCKED,
//     DONE}), trampoline, per-consumer "current fiber" slot.
//   - Scheduler: fixed pool of consumers, each owning one goroutine and one
//     run queue, with sticky placement and bounded-retry scheduling.
//   - Synchronization: [Mutex], [Cond], [WaitGroup], [SpinLock], and
//     [Channel] are all built on the wait queue.
//   - I/O: [internal/ioreactor] parks fibers on readiness via epoll;
//     [internal/timer] drives sleeps and I/O timeouts via a hashed wheel.
//
// # API
//
//   - Spawning: [Go], [Create], [Yield], [Sleep].
//   - Lifecycle: [NewScheduler], [Scheduler.Run], [Scheduler.Stop], [Main].
//   - I/O: [Read], [Write], [Accept], [Connect], [Recv], [Send], [Writev],
//     [Sendfile], [Close], [Shutdown], and their edge-triggered *ET variants.
//   - Synchronization: [Mutex], [Cond], [WaitGroup], [SpinLock], [Channel].
//
// # Example
//
//	code := fiber.Main(func() int {
//		wg := fiber.NewWaitGroup()
//		for i := 0; i < 4; i++ {
//			_ = wg.Add(1)
//			fiber.Go(func() {
//				defer wg.Done()
//				_ = fiber.Sleep(10)
//			})
//		}
//		_ = wg.Wait()
//		return 0
//	})
package fiber
