// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfqueue implements the tagged-pointer Michael-Scott lock-free
// FIFO that backs every run queue and wait queue in the runtime. It is the
// one hand-rolled data structure in the module: the runtime's own spec
// calls for this exact ABA-safe linked-list algorithm with pooled nodes,
// which is a different shape than the bounded ring buffers the rest of
// the dependency stack provides.
package lfqueue

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// Queue is a multi-producer multi-consumer FIFO. A sentinel dummy node is
// always present; the queue is empty iff head == tail and head's next is
// nil. head and tail are cache-line separated to avoid false sharing
// between producers advancing tail and the consumer advancing head.
type Queue[T any] struct {
	_    [0]func() // prevent comparison
	head struct {
		w atomix.Uint64
		_ [56]byte
	}
	tail struct {
		w atomix.Uint64
		_ [56]byte
	}
	pool freelist[T]
	size atomix.Int64
}

// New returns an empty queue, ready to use.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	dummy := q.pool.get()
	t := packTagged(unsafe.Pointer(dummy), 0)
	q.head.w.Store(uint64(t))
	q.tail.w.Store(uint64(t))
	return q
}

func (q *Queue[T]) loadHead() tagged { return tagged(q.head.w.Load()) }
func (q *Queue[T]) loadTail() tagged { return tagged(q.tail.w.Load()) }

// Empty reports whether the queue currently holds no elements. It is
// approximate under concurrent mutation and intended for debugging only.
func (q *Queue[T]) Empty() bool {
	return q.loadHead().ptr() == q.loadTail().ptr()
}

// Size returns an approximate element count, maintained with relaxed
// increments/decrements. It is not a source of correctness.
func (q *Queue[T]) Size() int64 {
	return q.size.Load()
}

// Push enqueues value at the tail. Any number of goroutines may call Push
// concurrently with each other and with Pop.
func (q *Queue[T]) Push(value T) {
	newNode := q.pool.get()
	newNode.value = value

	for {
		tail := q.loadTail()
		tailPtr := (*node[T])(tail.ptr())
		next := tailPtr.loadNext()

		if tail != q.loadTail() {
			continue
		}

		if next.ptr() != nil {
			// tail lagged behind; help advance it before retrying.
			newTail := packTagged(next.ptr(), tail.nextTag())
			q.tail.w.CompareAndSwap(uint64(tail), uint64(newTail))
			continue
		}

		newNext := packTagged(unsafe.Pointer(newNode), next.nextTag())
		if tailPtr.casNext(next, newNext) {
			newTail := packTagged(unsafe.Pointer(newNode), tail.nextTag())
			q.tail.w.CompareAndSwap(uint64(tail), uint64(newTail))
			q.size.Add(1)
			return
		}
	}
}

// Pop dequeues the value at the head, reporting ok == false if the queue
// was empty. Any number of goroutines may call Pop concurrently with each
// other and with Push.
func (q *Queue[T]) Pop() (value T, ok bool) {
	for {
		head := q.loadHead()
		headPtr := (*node[T])(head.ptr())
		tail := q.loadTail()
		next := headPtr.loadNext()

		if head != q.loadHead() {
			continue
		}

		if headPtr == (*node[T])(tail.ptr()) {
			if next.ptr() == nil {
				return value, false
			}
			// tail lagged behind the real tail; help advance it.
			newTail := packTagged(next.ptr(), tail.nextTag())
			q.tail.w.CompareAndSwap(uint64(tail), uint64(newTail))
			continue
		}

		nextPtr := (*node[T])(next.ptr())
		result := nextPtr.value
		newHead := packTagged(next.ptr(), head.nextTag())
		if q.head.w.CompareAndSwap(uint64(head), uint64(newHead)) {
			q.size.Add(-1)
			q.pool.put(headPtr)
			return result, true
		}
	}
}
