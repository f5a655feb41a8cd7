// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"sync/atomic"

	"code.hybscloud.com/fiber/internal/ioreactor"
	"code.hybscloud.com/fiber/internal/timer"
	"github.com/rs/zerolog"
)

// log is the package-level logger, defaulting to a no-op so embedding
// applications opt in rather than getting unsolicited output, the same
// convention the rest of this dependency stack follows.
var logHolder atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	logHolder.Store(&nop)
}

// SetLogger installs the logger used by the runtime and forwards it to the
// timer wheel and I/O reactor packages. Its log sites include a warning
// when resuming a DONE fiber, the consumer loop's warnings and reactor
// init errors, the reactor's own diagnostics, and an error when a timer
// callback panics.
func SetLogger(l zerolog.Logger) {
	logHolder.Store(&l)
	timer.SetLogger(l)
	ioreactor.SetLogger(l)
}

func log() *zerolog.Logger {
	return logHolder.Load()
}
