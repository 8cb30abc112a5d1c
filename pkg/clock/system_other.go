// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package clock

// System uses the runtime monotonic clock where CLOCK_MONOTONIC is unavailable.
type System struct{}

func (System) NowMs() Millis {
	return fallbackNow()
}
