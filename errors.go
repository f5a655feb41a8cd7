// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "errors"

// Sentinel errors for the runtime's error taxonomy (spec §7). Programmer
// errors (resuming a DONE fiber, yielding with no current fiber, unlocking
// an unheld mutex, I/O outside a fiber, sticky-violating placement) are
// surfaced as one of these rather than a panic, so a misbehaving fiber can
// be contained by its caller instead of crashing the consumer goroutine.
var (
	ErrDone               = errors.New("fiber: resume on a done fiber")
	ErrNoCurrentFiber     = errors.New("fiber: no current fiber")
	ErrNotLocked          = errors.New("fiber: unlock of unlocked mutex")
	ErrNotOwner           = errors.New("fiber: unlock by non-owner fiber")
	ErrNegativeWaitGroup  = errors.New("fiber: negative WaitGroup counter")
	ErrStickyViolation    = errors.New("fiber: scheduling violates sticky consumer affinity")
	ErrSchedulerStopped   = errors.New("fiber: scheduler is stopped")
	ErrSchedulerRunning   = errors.New("fiber: scheduler already running")
	ErrTimeout            = errors.New("fiber: i/o timeout")
	ErrClosed             = errors.New("fiber: channel closed")
	ErrWaitOutsideFiber   = errors.New("fiber: synchronization call outside fiber context")
	ErrConditionNotLocked = errors.New("fiber: condition wait without holding lock")
	ErrReactorClosed      = errors.New("fiber: io reactor is shutting down")
)

// IsTimeout reports whether err is (or wraps) ErrTimeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsClosed reports whether err is (or wraps) ErrClosed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsReactorClosed reports whether err is (or wraps) ErrReactorClosed.
func IsReactorClosed(err error) bool {
	return errors.Is(err, ErrReactorClosed)
}
