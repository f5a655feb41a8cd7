// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"sync"

	"code.hybscloud.com/atomix"
	goid "github.com/petermattis/goid"
)

// State is one of the fiber lifecycle states of spec §3/§4.C.
type State int32

const (
	StateReady State = iota
	StateRunning
	StateSuspended
	StateBlocked
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateBlocked:
		return "blocked"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

var fiberIDCounter atomix.Uint64

func nextFiberID() uint64 {
	return fiberIDCounter.Add(1)
}

// registry maps the goroutine that drives a fiber to that fiber. Each
// fiber owns exactly one dedicated goroutine for its entire life (see
// context.go), so this mapping is written once, at the goroutine's birth,
// and only removed again when that goroutine finishes — the idiomatic-Go substitute for the native
// runtime's thread_local current-fiber pointer, since Go has no goroutine
// scoped storage of its own.
var registry sync.Map // goid int64 -> *Fiber

func registerCurrent(f *Fiber) {
	registry.Store(goid.Get(), f)
}

func unregisterCurrent() {
	registry.Delete(goid.Get())
}

// currentFiber returns the Fiber driving the calling goroutine, or nil if
// called from a goroutine that isn't a fiber or a consumer's main fiber.
func currentFiber() *Fiber {
	v, ok := registry.Load(goid.Get())
	if !ok {
		return nil
	}
	return v.(*Fiber)
}

// Current returns the fiber driving the calling goroutine, or nil outside
// fiber context.
func Current() *Fiber {
	return currentFiber()
}

// Fiber is a stackful user-space coroutine. The zero value is not usable;
// construct one with Create or Go.
type Fiber struct {
	id        uint64
	state     atomix.Int32
	ctx       *context
	fn        func()
	stackSize int

	// consumerID is the sticky affinity per spec §4.E; -1 means unset.
	consumerID atomix.Int64

	// parent is set when and only when this fiber is RUNNING, per spec
	// §3's invariant. It is touched only by the fiber's own goroutine and
	// by whichever goroutine calls Resume on it, and those two accesses
	// never overlap because of the one-queue-at-a-time invariant.
	parent *Fiber

	// wakeClaimed guards against a parked fiber being resumed twice when
	// more than one path could plausibly wake it for the same park cycle
	// — a real notify racing a timeout being the only case in this
	// runtime (Cond.WaitFor). armWake resets it to unclaimed immediately
	// before the fiber is pushed onto a wait queue; claimWake is the CAS
	// every wake path (waitqueue.go's wakeOne/WakeAll, and the timer
	// branch in waitqueue.go's parkCurrentTimed) must win before it may call
	// scheduleWoken, so only the first wake source to fire actually
	// resumes the fiber.
	wakeClaimed atomix.Bool
}

func (f *Fiber) armWake() { f.wakeClaimed.Store(false) }

func (f *Fiber) claimWake() bool { return f.wakeClaimed.CompareAndSwap(false, true) }

// Create constructs a fiber without scheduling it; the caller is
// responsible for calling Resume. stackSize is a hint (spec §4.A); 0 uses
// the package default.
func Create(fn func(), stackSize int) *Fiber {
	if stackSize <= 0 {
		stackSize = defaultStackSize
	}
	f := &Fiber{
		id:        nextFiberID(),
		fn:        fn,
		stackSize: stackSize,
	}
	f.state.Store(int32(StateReady))
	f.consumerID.Store(-1)
	f.ctx = newContext(f.trampoline)
	return f
}

func newMainFiber() *Fiber {
	f := &Fiber{id: nextFiberID()}
	f.state.Store(int32(StateRunning))
	f.consumerID.Store(-1)
	f.ctx = newContext(nil)
	return f
}

// ID returns the fiber's monotonic identity.
func (f *Fiber) ID() uint64 { return f.id }

// State returns the fiber's current lifecycle state.
func (f *Fiber) State() State { return State(f.state.Load()) }

// ConsumerID returns the sticky consumer id this fiber is pinned to, or -1
// if it has none yet.
func (f *Fiber) ConsumerID() int64 { return f.consumerID.Load() }

func (f *Fiber) setConsumerID(id int64) { f.consumerID.Store(id) }

// trampoline is the one-shot function a fiber's context is armed with. It
// never returns in the normal Go sense of returning to its caller's
// frame — it always ends by yielding control to the parent, per spec
// §4.A, and the goroutine backing it then exits.
func (f *Fiber) trampoline() {
	registerCurrent(f)
	defer unregisterCurrent()

	f.fn()

	f.state.Store(int32(StateDone))
	parent := f.parent
	f.parent = nil
	if parent != nil {
		parent.state.Store(int32(StateRunning))
		f.ctx.exitTo(parent.ctx)
	}
}

// Resume transfers control to f from the calling fiber (or a consumer's
// main fiber). It blocks until f yields, blocks, or finishes. Resuming a
// DONE fiber is a recoverable programmer error, logged at warn.
func (f *Fiber) Resume() error {
	if f.State() == StateDone {
		log().Warn().Uint64("fiber_id", f.id).Msg("resume on a done fiber")
		return ErrDone
	}
	caller := currentFiber()
	if caller == nil {
		return ErrNoCurrentFiber
	}
	f.parent = caller
	f.state.Store(int32(StateRunning))
	caller.ctx.switchTo(f.ctx)
	return nil
}

func yieldTo(target State) error {
	self := currentFiber()
	if self == nil {
		return ErrNoCurrentFiber
	}
	if self.State() != StateDone {
		self.state.Store(int32(target))
	}
	parent := self.parent
	self.parent = nil
	if parent == nil {
		return ErrNoCurrentFiber
	}
	parent.state.Store(int32(StateRunning))
	self.ctx.switchTo(parent.ctx)
	return nil
}

// Yield suspends the current fiber, making it schedulable again (spec
// §4.C). It is a programming error to call Yield outside fiber context.
func Yield() error {
	return yieldTo(StateSuspended)
}

// blockYield suspends the current fiber as BLOCKED: it will not be
// reinserted into a run queue by its consumer and may only be rescheduled
// by a wake path (wait queue, timer, reactor).
func blockYield() error {
	return yieldTo(StateBlocked)
}
