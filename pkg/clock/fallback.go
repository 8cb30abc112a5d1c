// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package clock

import "time"

var processStart = time.Now()

func fallbackNow() Millis {
	return Millis(uint64(time.Since(processStart) / time.Millisecond))
}
