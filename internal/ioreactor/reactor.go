// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package ioreactor implements the edge-triggered epoll readiness reactor
// each consumer owns (spec §4.H). It knows nothing about fibers: callers
// hand it a Notifier to wake per fd/event pair, and the root package
// passes its own wait queue, which satisfies Notifier directly. That
// interface is what
// lets this package live under internal/ without importing the fiber
// package that imports it.
package ioreactor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"golang.org/x/sys/unix"
)

// Event is a readiness direction, matching the two epoll directions the
// reactor tracks per fd.
type Event uint32

const (
	Read  Event = unix.EPOLLIN
	Write Event = unix.EPOLLOUT
)

const maxFD = 65536

// Notifier is anything that can wake every current waiter for one
// fd/event pair. The root package's wait queue satisfies this directly.
type Notifier interface {
	WakeAll() int
}

// FdContext holds the per-fd epoll registration state: the event mask
// currently installed and the notifiers to wake for each direction.
type FdContext struct {
	mu     spin.Lock
	events uint32
	read   Notifier
	write  Notifier
}

// Manager is one epoll instance plus its fd-context table and self-wake
// eventfd. Each consumer owns exactly one (spec's chosen per-consumer
// granularity, SPEC_FULL.md §9). The fd table is a plain slice of
// atomic.Pointer rather than an atomix typed atomic, since atomix's
// surface in this stack is the fixed-width integer/bool family and has no
// generic pointer atomic to reach for.
type Manager struct {
	epollFD  int
	wakeFD   int
	contexts []atomic.Pointer[FdContext]
	numFDs   atomix.Int64
	closed   atomix.Bool
	draining atomix.Bool
	createMu sync.Mutex
}

// New creates an epoll instance and its wake-up eventfd.
func New() (*Manager, error) {
	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("ioreactor: epoll_create1: %w", err)
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epollFD)
		return nil, fmt.Errorf("ioreactor: eventfd: %w", err)
	}
	m := &Manager{
		epollFD:  epollFD,
		wakeFD:   wakeFD,
		contexts: make([]atomic.Pointer[FdContext], maxFD),
	}
	if err := unix.EpollCtl(m.epollFD, unix.EPOLL_CTL_ADD, m.wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(m.wakeFD),
	}); err != nil {
		_ = unix.Close(epollFD)
		_ = unix.Close(wakeFD)
		return nil, fmt.Errorf("ioreactor: epoll_ctl(wakefd): %w", err)
	}
	log().Debug().Int("epoll_fd", epollFD).Msg("io reactor initialized")
	return m, nil
}

// Close shuts the reactor down. It is idempotent.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = unix.Close(m.wakeFD)
	err := unix.Close(m.epollFD)
	log().Debug().Msg("io reactor shutdown")
	return err
}

// NumFDs returns the number of fds currently registered, a supplement
// over the native API for observability (SPEC_FULL.md §11.1).
func (m *Manager) NumFDs() int64 { return m.numFDs.Load() }

// Draining reports whether CancelAll has run. Callers that get woken after
// this returns true should treat the wake as a shutdown cancellation
// rather than genuine readiness (spec §8 S6: a fiber blocked on I/O when
// the runtime stops must wake with a cancellation result, not hang).
func (m *Manager) Draining() bool { return m.draining.Load() }

// CancelAll wakes every notifier currently registered on the manager,
// without waiting for real readiness, and marks the manager draining so
// woken callers can tell a cancellation from a normal wakeup. It is the
// runtime-stop path's sweep: every
// blocked reader/writer/accepter gets one last chance to unwind instead of
// leaking a parked goroutine.
func (m *Manager) CancelAll() int {
	m.draining.Store(true)
	n := 0
	for fd := 0; fd < maxFD; fd++ {
		ctx := m.contexts[fd].Load()
		if ctx == nil {
			continue
		}
		ctx.mu.Lock()
		read, write := ctx.read, ctx.write
		ctx.mu.Unlock()
		if read != nil {
			n += read.WakeAll()
		}
		if write != nil {
			n += write.WakeAll()
		}
	}
	return n
}

func (m *Manager) contextFor(fd int) *FdContext {
	if ctx := m.contexts[fd].Load(); ctx != nil {
		return ctx
	}
	m.createMu.Lock()
	defer m.createMu.Unlock()
	if ctx := m.contexts[fd].Load(); ctx != nil {
		return ctx
	}
	ctx := &FdContext{}
	m.contexts[fd].Store(ctx)
	m.numFDs.Add(1)
	return ctx
}

// AddEvent registers interest in event for fd, waking notifier whenever
// it fires (once per edge-triggered readiness, by epoll's own contract).
func (m *Manager) AddEvent(fd int, event Event, notifier Notifier) error {
	if m.closed.Load() {
		return fmt.Errorf("ioreactor: closed")
	}
	if fd < 0 || fd >= maxFD {
		return fmt.Errorf("ioreactor: fd %d out of range", fd)
	}
	ctx := m.contextFor(fd)

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	oldEvents := ctx.events
	newEvents := oldEvents | uint32(event)
	if event == Read {
		ctx.read = notifier
	} else {
		ctx.write = notifier
	}

	op := unix.EPOLL_CTL_ADD
	if oldEvents != 0 {
		op = unix.EPOLL_CTL_MOD
	}
	err := unix.EpollCtl(m.epollFD, op, fd, &unix.EpollEvent{
		Events: newEvents | unix.EPOLLET,
		Fd:     int32(fd),
	})
	if err != nil {
		return fmt.Errorf("ioreactor: epoll_ctl(fd=%d): %w", fd, err)
	}
	ctx.events = newEvents
	return nil
}

// DelEvent removes interest in event for fd.
func (m *Manager) DelEvent(fd int, event Event) error {
	if fd < 0 || fd >= maxFD {
		return fmt.Errorf("ioreactor: fd %d out of range", fd)
	}
	ctx := m.contexts[fd].Load()
	if ctx == nil {
		return nil
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	oldEvents := ctx.events
	newEvents := oldEvents &^ uint32(event)

	op := unix.EPOLL_CTL_DEL
	if newEvents != 0 {
		op = unix.EPOLL_CTL_MOD
	}
	err := unix.EpollCtl(m.epollFD, op, fd, &unix.EpollEvent{
		Events: newEvents | unix.EPOLLET,
		Fd:     int32(fd),
	})
	if err != nil {
		return fmt.Errorf("ioreactor: epoll_ctl(fd=%d): %w", fd, err)
	}
	ctx.events = newEvents
	if newEvents == 0 {
		m.contexts[fd].Store(nil)
		m.numFDs.Add(-1)
	}
	return nil
}

// WakeEvent wakes every waiter registered for fd/event, then deregisters
// it. It is the cancellation path: a fiber waiting on a timeout that
// fires, or an explicit Close, must see the wait end even though no real
// readiness ever arrived. Waking happens strictly before deregistering so
// DelEvent's possible clearing of the fd context can never race ahead of
// the notification it would otherwise orphan.
func (m *Manager) WakeEvent(fd int, event Event) {
	if fd < 0 || fd >= maxFD {
		return
	}
	if ctx := m.contexts[fd].Load(); ctx != nil {
		ctx.mu.Lock()
		var n Notifier
		if event == Read {
			n = ctx.read
		} else {
			n = ctx.write
		}
		ctx.mu.Unlock()
		if n != nil {
			n.WakeAll()
		}
	}
	_ = m.DelEvent(fd, event)
}

// Wake breaks a blocked ProcessEvents call early. It is how a consumer's
// main loop is prodded after new work lands on its run queue or timer
// wheel while the loop is parked in epoll_wait.
func (m *Manager) Wake() {
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	_, _ = unix.Write(m.wakeFD, buf)
}

const maxEvents = 1024

// ProcessEvents blocks for up to timeoutMs milliseconds waiting for
// readiness, then wakes every matching fd's read/write notifiers. A
// negative timeoutMs blocks indefinitely; 0 polls without blocking.
func (m *Manager) ProcessEvents(timeoutMs int) {
	if m.closed.Load() {
		return
	}

	var events [maxEvents]unix.EpollEvent
	n, err := unix.EpollWait(m.epollFD, events[:], timeoutMs)
	if err != nil {
		if err != unix.EINTR {
			log().Error().Err(err).Msg("epoll_wait failed")
		}
		return
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == m.wakeFD {
			m.drainWake()
			continue
		}
		revents := events[i].Events

		ctx := m.contexts[fd].Load()
		if ctx == nil {
			log().Warn().Int("fd", fd).Msg("fd context missing, event lost")
			continue
		}

		ctx.mu.Lock()
		read, write := ctx.read, ctx.write
		ctx.mu.Unlock()

		if revents&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 && read != nil {
			read.WakeAll()
		}
		if revents&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0 && write != nil {
			write.WakeAll()
		}
	}
}

func (m *Manager) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(m.wakeFD, buf[:])
		if err != nil {
			return
		}
	}
}
