// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "time"

// after returns a channel that fires once after ms milliseconds, a
// negative ms meaning "never" (nil channel, blocks forever) and ms == 0
// meaning "immediately".
func after(ms int) <-chan time.Time {
	if ms < 0 {
		return nil
	}
	return time.After(time.Duration(ms) * time.Millisecond)
}
