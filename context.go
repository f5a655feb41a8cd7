// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "sync"

// context stands in for the native stack-switching primitive of spec §4.A.
// Rather than hand-written register save/restore, it uses a goroutine as
// the stack and an unbuffered channel as the switch: switchTo hands control
// to another context and blocks until control is handed back, which is
// exactly the "transparent, appears to return" contract the spec asks for.
//
// A context with a nil entry represents a main fiber: its "goroutine" is
// whichever goroutine is currently driving it through switchTo, so it is
// never lazily started.
type context struct {
	resume chan struct{}
	entry  func()
	once   sync.Once
}

func newContext(entry func()) *context {
	return &context{resume: make(chan struct{}), entry: entry}
}

func (c *context) ensureStarted() {
	if c.entry == nil {
		return
	}
	c.once.Do(func() {
		go func() {
			<-c.resume
			c.entry()
		}()
	})
}

// switchTo saves the caller's execution into self and transfers to to,
// blocking until some later switchTo hands control back to self.
func (c *context) switchTo(to *context) {
	to.ensureStarted()
	to.resume <- struct{}{}
	<-c.resume
}

// exitTo is the trampoline's terminal transfer: it hands control to to
// without waiting to be resumed again. DONE fibers are never resumed, so
// the goroutine backing this context simply returns after calling it.
func (c *context) exitTo(to *context) {
	to.ensureStarted()
	to.resume <- struct{}{}
}
