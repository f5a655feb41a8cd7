// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ioreactor

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var logHolder atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	logHolder.Store(&nop)
}

// SetLogger installs the logger used for reactor init/shutdown diagnostics
// and lost-event warnings. The root package's SetLogger forwards here.
func SetLogger(l zerolog.Logger) {
	logHolder.Store(&l)
}

func log() *zerolog.Logger {
	return logHolder.Load()
}
