// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfqueue

import "unsafe"

// tagged is a 64-bit word packing a 48-bit pointer and a 16-bit ABA tag,
// per the runtime's tagged-pointer scheme. The tag occupies the high 16
// bits so ordinary pointer comparisons on the low 48 bits still work for
// debugging, and every CAS that changes the pointer also bumps the tag.
type tagged uint64

const (
	ptrMask  = uint64(1)<<48 - 1
	tagShift = 48
)

// packTagged and ptr round-trip a node address through an integer so it can
// share a word with the ABA tag for a single CAS. That round trip is only
// safe because freelist.slab keeps every node it ever allocates reachable
// through a real *node[T] for the node's entire lifetime — see freelist.go.
// Without that, the collector could reclaim a node while its only live
// reference was this packed uintptr.
func packTagged(p unsafe.Pointer, tag uint16) tagged {
	return tagged(uint64(uintptr(p))&ptrMask | uint64(tag)<<tagShift)
}

func (t tagged) ptr() unsafe.Pointer {
	return unsafe.Pointer(uintptr(uint64(t) & ptrMask))
}

func (t tagged) tag() uint16 {
	return uint16(uint64(t) >> tagShift)
}

func (t tagged) nextTag() uint16 {
	return t.tag() + 1
}
