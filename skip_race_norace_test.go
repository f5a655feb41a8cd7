// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

package fiber_test

import "testing"

// skipRace is a no-op outside race builds.
func skipRace(tb testing.TB) {
	tb.Helper()
}
