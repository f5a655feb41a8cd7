// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package timer

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var logHolder atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	logHolder.Store(&nop)
}

// SetLogger installs the logger used when a timer callback panics. The
// root package's SetLogger forwards here so callers configure logging in
// one place.
func SetLogger(l zerolog.Logger) {
	logHolder.Store(&l)
}

func logTimerPanic(r any) {
	logHolder.Load().Error().Interface("panic", r).Msg("timer callback panicked")
}
