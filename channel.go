// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfq"
)

const defaultChannelCapacity = 2

// Channel is a bounded, fiber-blocking producer/consumer queue (spec §1's
// "channel container templates on top of the wait-queue"). The ring
// buffer itself is lfq's bounded MPMC queue; this type adds the blocking
// semantics — parking a fiber on Send when full, on Recv when empty, and
// unblocking every waiter on Close — on top of it.
type Channel[T any] struct {
	q           lfq.Queue[T]
	closed      atomix.Bool
	sendWaiters *waitQueue
	recvWaiters *waitQueue
}

// NewChannel constructs a channel with the given capacity, which rounds
// up to the next power of 2 per lfq's own rule; capacity <= 0 is treated
// as the smallest usable buffer (spec's Channel(0) default).
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity <= 0 {
		capacity = defaultChannelCapacity
	}
	return &Channel[T]{
		q:           lfq.NewMPMC[T](capacity),
		sendWaiters: newWaitQueue(),
		recvWaiters: newWaitQueue(),
	}
}

// Send blocks the current fiber until value is enqueued or the channel is
// closed, in which case it returns ErrClosed.
func (c *Channel[T]) Send(value T) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.q.Enqueue(&value); err == nil {
		c.recvWaiters.wakeOne()
		return nil
	}
	for {
		if err := c.sendWaiters.parkCurrent(); err != nil {
			return err
		}
		if c.closed.Load() {
			return ErrClosed
		}
		if err := c.q.Enqueue(&value); err == nil {
			c.recvWaiters.wakeOne()
			return nil
		}
	}
}

// TrySend enqueues value without blocking, returning ErrClosed if the
// channel is closed or iox's would-block error (via lfq.IsWouldBlock) if
// the buffer is full.
func (c *Channel[T]) TrySend(value T) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.q.Enqueue(&value); err != nil {
		return err
	}
	c.recvWaiters.wakeOne()
	return nil
}

// Recv blocks the current fiber until a value is available or the
// channel is closed and drained, in which case it returns ErrClosed.
func (c *Channel[T]) Recv() (T, error) {
	var zero T
	if v, err := c.q.Dequeue(); err == nil {
		c.sendWaiters.wakeOne()
		return v, nil
	}
	for {
		if c.closed.Load() {
			if v, err := c.q.Dequeue(); err == nil {
				c.sendWaiters.wakeOne()
				return v, nil
			}
			return zero, ErrClosed
		}
		if err := c.recvWaiters.parkCurrent(); err != nil {
			return zero, err
		}
		if v, err := c.q.Dequeue(); err == nil {
			c.sendWaiters.wakeOne()
			return v, nil
		}
	}
}

// TryRecv dequeues a value without blocking.
func (c *Channel[T]) TryRecv() (T, error) {
	v, err := c.q.Dequeue()
	if err != nil {
		var zero T
		return zero, err
	}
	c.sendWaiters.wakeOne()
	return v, nil
}

// Close marks the channel closed and wakes every blocked sender and
// receiver. It is idempotent. If the underlying queue supports draining
// (lfq's FAA-based MPMC does), Close drains it so waiters blocked on a
// full-looking queue under the threshold livelock guard can still make
// progress reading what remains.
func (c *Channel[T]) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if d, ok := c.q.(lfq.Drainer); ok {
		d.Drain()
	}
	c.sendWaiters.WakeAll()
	c.recvWaiters.WakeAll()
}

// IsClosed reports whether Close has been called.
func (c *Channel[T]) IsClosed() bool { return c.closed.Load() }
