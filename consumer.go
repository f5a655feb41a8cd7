// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package fiber

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/fiber/internal/ioreactor"
	"code.hybscloud.com/fiber/internal/lfqueue"
	"code.hybscloud.com/fiber/internal/timer"
)

// consumer is one worker goroutine plus its local lock-free run queue
// (spec §4.E). Each consumer owns its own timer wheel, built with the
// consumer, and its own I/O reactor, created lazily by its loop, resolving the Open Question in spec §9 in favor of per-consumer
// granularity: it avoids cross-thread fd-table mutation entirely, at the
// documented cost of fds not being portable between fibers pinned to
// different consumers.
type consumer struct {
	id      int64
	sched   *Scheduler
	runq    *lfqueue.Queue[*Fiber]
	main    *Fiber
	running atomix.Bool

	wake    chan struct{}
	done    chan struct{}
	reactor *ioreactor.Manager
	wheel   *timer.Wheel
}

func newConsumer(id int64, s *Scheduler) *consumer {
	c := &consumer{
		id:    id,
		sched: s,
		runq:  lfqueue.New[*Fiber](),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	c.wheel = timer.NewWheel(s.cfg.TimerSlots, s.cfg.TimerTickMs)
	return c
}

func (c *consumer) start() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	go c.loop()
}

func (c *consumer) stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.notifyWake()
	<-c.done
}

// schedule pushes a fiber onto this consumer's run queue and wakes the
// consumer loop if it is parked waiting for work.
func (c *consumer) schedule(f *Fiber) {
	c.runq.Push(f)
	c.notifyWake()
}

func (c *consumer) notifyWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
	if c.reactor != nil {
		c.reactor.Wake()
	}
}

func (c *consumer) queueSize() int64 { return c.runq.Size() }

func (c *consumer) loop() {
	defer close(c.done)

	c.main = newMainFiber()
	c.main.setConsumerID(c.id)
	registerCurrent(c.main)
	defer unregisterCurrent()

	reactor, err := ioreactor.New()
	if err != nil {
		log().Error().Err(err).Int64("consumer_id", c.id).Msg("io reactor init failed")
	} else {
		c.reactor = reactor
		defer c.reactor.Close()
	}

	for c.running.Load() {
		f, ok := c.runq.Pop()
		if !ok {
			c.idle()
			continue
		}

		if f.parent != nil {
			log().Warn().Uint64("fiber_id", f.id).Msg("popped fiber with non-nil parent")
		}
		f.setConsumerID(c.id)

		if err := f.Resume(); err != nil {
			log().Warn().Uint64("fiber_id", f.id).Err(err).Msg("resume failed in consumer loop")
			continue
		}

		switch f.State() {
		case StateSuspended:
			c.schedule(f)
		case StateBlocked, StateDone:
			// dropped: a wake path owns re-entry, or the fiber is finished.
		}
	}

	c.drain()
}

// idle runs one tick of the timer wheel and one pass of the I/O reactor,
// parking on the wake channel for whichever is sooner when there is
// nothing else to do. This is the cooperative "yield the OS thread"
// behavior spec §4.E calls for when the run queue is empty.
func (c *consumer) idle() {
	c.wheel.Tick()

	timeout := c.wheel.NextTimeoutMs()
	if c.reactor != nil {
		c.reactor.ProcessEvents(timeout)
		return
	}

	select {
	case <-c.wake:
	default:
		select {
		case <-c.wake:
		case <-after(timeout):
		}
	}
}

// drain resumes any residual fibers to completion after shutdown; since no
// new work can enter a stopped consumer's queue, this always terminates.
func (c *consumer) drain() {
	for {
		f, ok := c.runq.Pop()
		if !ok {
			return
		}
		for f.State() != StateDone && f.State() != StateBlocked {
			if err := f.Resume(); err != nil {
				break
			}
		}
	}
}
