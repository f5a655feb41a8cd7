// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package fiber_test

import "testing"

// skipRace skips tests that drive the tagged-pointer run/wait queues under
// heavy concurrency, for the same reason internal/lfqueue's own race-build
// tests are skipped: the race detector cannot see the acquire/release
// ordering the tagged CAS establishes across the packed pointer+tag word.
func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: tagged-pointer queue uses cross-word memory ordering")
}
