// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfqueue

import (
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// node is the pooled storage unit shared by the queue and its free-list.
// next is read by the Michael-Scott queue while the node is enqueued and
// reinterpreted as the free-list link once the node is recycled; the two
// uses never overlap because a node is always in exactly one structure.
type node[T any] struct {
	value T
	next  atomix.Uint64
}

func (n *node[T]) loadNext() tagged {
	return tagged(n.next.Load())
}

func (n *node[T]) casNext(old, new tagged) bool {
	return n.next.CompareAndSwap(uint64(old), uint64(new))
}

func (n *node[T]) storeNext(t tagged) {
	n.next.Store(uint64(t))
}

// freelist is a tagged-pointer lock-free stack of recycled nodes. Reusing
// nodes instead of letting the allocator and GC reclaim them keeps the
// queue allocation-free on the steady-state enqueue/dequeue path and gives
// the ABA tag somewhere meaningful to advance: a node's tag increases every
// time it is pushed back here.
//
// head only ever holds a node's address packed into a uint64: reconstituting
// a pointer from that integer is only valid, per the unsafe package's rules,
// while some real pointer elsewhere keeps the node reachable. slab is that
// real pointer — every node this freelist ever allocates is appended to it
// once, permanently, so the Go collector always has an actual *node[T] to
// see regardless of which tagged integer word currently references the same
// node (head, a queue's head/tail, or another node's next).
type freelist[T any] struct {
	head atomix.Uint64

	slabMu sync.Mutex
	slab   []*node[T]
}

func (f *freelist[T]) alloc() *node[T] {
	n := new(node[T])
	f.slabMu.Lock()
	f.slab = append(f.slab, n)
	f.slabMu.Unlock()
	return n
}

func (f *freelist[T]) get() *node[T] {
	for {
		old := tagged(f.head.Load())
		p := old.ptr()
		if p == nil {
			return f.alloc()
		}
		n := (*node[T])(p)
		next := n.loadNext()
		newHead := packTagged(next.ptr(), old.nextTag())
		if f.head.CompareAndSwap(uint64(old), uint64(newHead)) {
			var zero T
			n.value = zero
			n.next.Store(0)
			return n
		}
	}
}

func (f *freelist[T]) put(n *node[T]) {
	for {
		old := tagged(f.head.Load())
		n.storeNext(old)
		newHead := packTagged(unsafe.Pointer(n), old.nextTag())
		if f.head.CompareAndSwap(uint64(old), uint64(newHead)) {
			return
		}
	}
}
