// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package fiber

import (
	"fmt"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/fiber/internal/ioreactor"
	"code.hybscloud.com/fiber/internal/timer"
	"golang.org/x/sys/unix"
)

// currentConsumer returns the consumer driving the calling fiber's worker,
// or nil if called outside fiber context or before the fiber has been
// placed on a consumer.
func currentConsumer() *consumer {
	f := currentFiber()
	if f == nil {
		return nil
	}
	s := activeScheduler.Load()
	if s == nil {
		return nil
	}
	id := f.ConsumerID()
	if id < 0 || id >= int64(len(s.consumers)) {
		return nil
	}
	return s.consumers[id]
}

func isAgain(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// ioWait tracks one I/O façade call's optional deadline, shared between
// the normal completion path and the timer callback via the resolved
// flag, exactly as only one of the two may act on the outcome (spec
// §4.J, ported from io_fiber.cpp's doIO: "woken_state").
type ioWait struct {
	c        *consumer
	fd       int
	event    ioreactor.Event
	timer    *timer.Timer
	resolved atomix.Bool
	timedOut atomix.Bool
}

func newIOWait(fd int, event ioreactor.Event, timeoutMs int64) (*ioWait, error) {
	c := currentConsumer()
	if c == nil || c.reactor == nil {
		return nil, fmt.Errorf("fiber: io requires a consumer-owned reactor")
	}
	w := &ioWait{c: c, fd: fd, event: event}
	if timeoutMs > 0 {
		w.timer = c.wheel.AddTimer(timeoutMs, func() {
			w.timedOut.Store(true)
			if w.resolved.CompareAndSwap(false, true) {
				c.reactor.WakeEvent(fd, event)
			}
		}, false)
	}
	return w, nil
}

func (w *ioWait) cancelTimer() {
	if w.timer != nil && w.resolved.CompareAndSwap(false, true) {
		w.c.wheel.Cancel(w.timer)
	}
}

// awaitReady blocks the current fiber until fd becomes ready for event or
// the deadline set at construction passes.
func (w *ioWait) awaitReady() error {
	if w.timedOut.Load() {
		return ErrTimeout
	}
	wq := newWaitQueue()
	if err := w.c.reactor.AddEvent(w.fd, w.event, wq); err != nil {
		return err
	}
	if err := wq.parkCurrent(); err != nil {
		return err
	}
	_ = w.c.reactor.DelEvent(w.fd, w.event)
	if w.timedOut.Load() {
		return ErrTimeout
	}
	if w.c.reactor.Draining() {
		return ErrReactorClosed
	}
	return nil
}

// doIO runs op in a loop: attempt, and on EAGAIN/EWOULDBLOCK park until fd
// is ready (or timeoutMs elapses) before retrying. A non-positive
// timeoutMs means wait forever, matching the façade's default (spec
// §4.J).
func doIO(fd int, event ioreactor.Event, timeoutMs int64, op func() (int, error)) (int, error) {
	if currentFiber() == nil {
		return 0, ErrWaitOutsideFiber
	}
	w, err := newIOWait(fd, event, timeoutMs)
	if err != nil {
		return 0, err
	}
	for {
		n, opErr := op()
		if opErr == nil || !isAgain(opErr) {
			w.cancelTimer()
			return n, opErr
		}
		if err := w.awaitReady(); err != nil {
			return 0, err
		}
	}
}

// Read blocks the current fiber until at least one byte can be read from
// fd into buf, or an error (including ErrTimeout) occurs.
func Read(fd int, buf []byte, timeoutMs int64) (int, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return 0, err
	}
	return doIO(fd, ioreactor.Read, timeoutMs, func() (int, error) {
		return unix.Read(fd, buf)
	})
}

// Write blocks the current fiber until at least one byte of buf has been
// written to fd, or an error occurs.
func Write(fd int, buf []byte, timeoutMs int64) (int, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return 0, err
	}
	return doIO(fd, ioreactor.Write, timeoutMs, func() (int, error) {
		return unix.Write(fd, buf)
	})
}

// Recv is Read for a connected socket (recv(2) with flags 0 and read(2)
// are equivalent in that case).
func Recv(fd int, buf []byte, timeoutMs int64) (int, error) {
	return Read(fd, buf, timeoutMs)
}

// Send is Write for a connected socket.
func Send(fd int, buf []byte, timeoutMs int64) (int, error) {
	return Write(fd, buf, timeoutMs)
}

// Writev blocks the current fiber until at least one byte across iovs has
// been written to fd.
func Writev(fd int, iovs []unix.Iovec, timeoutMs int64) (int, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return 0, err
	}
	return doIO(fd, ioreactor.Write, timeoutMs, func() (int, error) {
		if len(iovs) == 0 {
			return 0, nil
		}
		n, _, errno := unix.Syscall(unix.SYS_WRITEV, uintptr(fd), uintptr(unsafe.Pointer(&iovs[0])), uintptr(len(iovs)))
		if errno != 0 {
			return int(n), errno
		}
		return int(n), nil
	})
}

// Sendfile blocks the current fiber until at least one byte has been
// copied from src to dst via the sendfile(2) syscall.
func Sendfile(dst, src int, offset *int64, count int, timeoutMs int64) (int, error) {
	if err := unix.SetNonblock(dst, true); err != nil {
		return 0, err
	}
	return doIO(dst, ioreactor.Write, timeoutMs, func() (int, error) {
		return unix.Sendfile(dst, src, offset, count)
	})
}

// Accept blocks the current fiber until a connection can be accepted on
// sockfd, returning the new connection's fd already set non-blocking.
func Accept(sockfd int, timeoutMs int64) (int, unix.Sockaddr, error) {
	if err := unix.SetNonblock(sockfd, true); err != nil {
		return 0, nil, err
	}
	if currentFiber() == nil {
		return 0, nil, ErrWaitOutsideFiber
	}
	w, err := newIOWait(sockfd, ioreactor.Read, timeoutMs)
	if err != nil {
		return 0, nil, err
	}
	for {
		nfd, sa, err := unix.Accept4(sockfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == nil {
			w.cancelTimer()
			return nfd, sa, nil
		}
		if !isAgain(err) {
			w.cancelTimer()
			return 0, nil, err
		}
		if err := w.awaitReady(); err != nil {
			return 0, nil, err
		}
	}
}

// Connect blocks the current fiber until an asynchronous connect on
// sockfd completes, checking SO_ERROR once the write side becomes ready
// per the EINPROGRESS handshake (SPEC_FULL.md §11.1).
func Connect(sockfd int, sa unix.Sockaddr, timeoutMs int64) error {
	if err := unix.SetNonblock(sockfd, true); err != nil {
		return err
	}
	if currentFiber() == nil {
		return ErrWaitOutsideFiber
	}

	err := unix.Connect(sockfd, sa)
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS {
		return err
	}

	w, err := newIOWait(sockfd, ioreactor.Write, timeoutMs)
	if err != nil {
		return err
	}
	if err := w.awaitReady(); err != nil {
		return err
	}
	w.cancelTimer()

	soErr, err := unix.GetsockoptInt(sockfd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}

// Close wakes every fiber waiting on fd for either direction, then closes
// it. Waking first mirrors io_manager.cpp's wakeUp ordering note: delEvent
// may drop the fd context, so any wake must happen before it.
func Close(fd int) error {
	if c := currentConsumer(); c != nil && c.reactor != nil {
		c.reactor.WakeEvent(fd, ioreactor.Read)
		c.reactor.WakeEvent(fd, ioreactor.Write)
	}
	return unix.Close(fd)
}

// Shutdown wakes the waiters on the sides named by how, then shuts fd
// down.
func Shutdown(fd, how int) error {
	if c := currentConsumer(); c != nil && c.reactor != nil {
		if how == unix.SHUT_RD || how == unix.SHUT_RDWR {
			c.reactor.WakeEvent(fd, ioreactor.Read)
		}
		if how == unix.SHUT_WR || how == unix.SHUT_RDWR {
			c.reactor.WakeEvent(fd, ioreactor.Write)
		}
	}
	return unix.Shutdown(fd, how)
}

const etDrainBufSize = 4096

// ReadET edge-triggered-reads fd in user space until the kernel reports
// EAGAIN, returning every byte accumulated across that drain (spec §4.J:
// "returning the accumulated count or list; callers ... must handle
// partial-result semantics").
func ReadET(fd int, timeoutMs int64) ([]byte, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	if currentFiber() == nil {
		return nil, ErrWaitOutsideFiber
	}
	w, err := newIOWait(fd, ioreactor.Read, timeoutMs)
	if err != nil {
		return nil, err
	}
	var acc []byte
	var chunk [etDrainBufSize]byte
	for {
		n, rerr := unix.Read(fd, chunk[:])
		if n > 0 {
			acc = append(acc, chunk[:n]...)
			continue
		}
		if rerr == nil {
			w.cancelTimer()
			return acc, nil // EOF
		}
		if !isAgain(rerr) {
			w.cancelTimer()
			return acc, rerr
		}
		if len(acc) > 0 {
			w.cancelTimer()
			return acc, nil
		}
		if err := w.awaitReady(); err != nil {
			return acc, err
		}
	}
}

// RecvET is ReadET for a connected socket.
func RecvET(fd int, timeoutMs int64) ([]byte, error) {
	return ReadET(fd, timeoutMs)
}

// AcceptET edge-triggered-accepts every pending connection on sockfd
// until EAGAIN, returning the accumulated connection fds.
func AcceptET(sockfd int, timeoutMs int64) ([]int, error) {
	if err := unix.SetNonblock(sockfd, true); err != nil {
		return nil, err
	}
	if currentFiber() == nil {
		return nil, ErrWaitOutsideFiber
	}
	w, err := newIOWait(sockfd, ioreactor.Read, timeoutMs)
	if err != nil {
		return nil, err
	}
	var acc []int
	for {
		nfd, _, aerr := unix.Accept4(sockfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if aerr == nil {
			acc = append(acc, nfd)
			continue
		}
		if !isAgain(aerr) {
			w.cancelTimer()
			return acc, aerr
		}
		if len(acc) > 0 {
			w.cancelTimer()
			return acc, nil
		}
		if err := w.awaitReady(); err != nil {
			return acc, err
		}
	}
}
