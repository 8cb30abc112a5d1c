// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build linux || darwin || freebsd || netbsd || openbsd

package clock

import "golang.org/x/sys/unix"

// System reads CLOCK_MONOTONIC, truncated to a wrapping millisecond count.
type System struct{}

func (System) NowMs() Millis {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallbackNow()
	}
	return Millis(uint64(ts.Nano()) / 1e6)
}
