// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package lfqueue_test

import "testing"

// skipRace skips tests that exercise the tagged-pointer queue under heavy
// concurrency. The race detector tracks per-variable happens-before and
// cannot see the acquire/release ordering the tagged CAS establishes
// across the packed pointer+tag word, producing false positives.
func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: tagged-pointer queue uses cross-word memory ordering")
}
