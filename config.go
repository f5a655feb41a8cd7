// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "runtime"

const (
	defaultStackSize = 256 * 1024
	defaultTimerSlots = 256
	defaultTimerTickMs = 100
)

// Config holds the tunables enumerated in spec §6. Zero-value fields are
// replaced with defaults by NewScheduler.
type Config struct {
	// NumConsumer is the number of worker goroutines. Defaults to
	// runtime.NumCPU(), falling back to 4 when that reports 0.
	NumConsumer int
	// StackSize is the per-fiber stack hint in bytes. The goroutine-based
	// Context does not allocate a guarded stack itself, but the value is
	// preserved and reported for parity with the component this stands in
	// for (spec §4.A) and for callers tuning against native builds.
	StackSize int
	// TimerSlots is the timer wheel's slot count.
	TimerSlots int
	// TimerTickMs is the timer wheel's tick interval in milliseconds.
	TimerTickMs int
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithNumConsumer sets the worker pool size.
func WithNumConsumer(n int) Option {
	return func(c *Config) { c.NumConsumer = n }
}

// WithStackSize sets the per-fiber stack size hint in bytes.
func WithStackSize(n int) Option {
	return func(c *Config) { c.StackSize = n }
}

// WithTimerWheel sets the timer wheel's slot count and tick interval.
func WithTimerWheel(slots, tickMs int) Option {
	return func(c *Config) {
		c.TimerSlots = slots
		c.TimerTickMs = tickMs
	}
}

func defaultConfig() Config {
	n := runtime.NumCPU()
	if n <= 0 {
		n = 4
	}
	return Config{
		NumConsumer: n,
		StackSize:   defaultStackSize,
		TimerSlots:  defaultTimerSlots,
		TimerTickMs: defaultTimerTickMs,
	}
}

func newConfig(opts ...Option) Config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	if c.NumConsumer <= 0 {
		c.NumConsumer = defaultConfig().NumConsumer
	}
	if c.StackSize <= 0 {
		c.StackSize = defaultStackSize
	}
	if c.TimerSlots <= 0 {
		c.TimerSlots = defaultTimerSlots
	}
	if c.TimerTickMs <= 0 {
		c.TimerTickMs = defaultTimerTickMs
	}
	return c
}
