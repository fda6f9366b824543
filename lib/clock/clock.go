// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source of the release fetcher, the rootfs store, and
// the supervisor.
type Clock interface {
	Now() time.Time

	// After returns a channel that receives once d has elapsed on this
	// clock. A non-positive d fires immediately.
	After(d time.Duration) <-chan time.Time

	Since(t time.Time) time.Duration
}

// Real returns the wall clock.
func Real() Clock { return wall{} }

type wall struct{}

func (wall) Now() time.Time                         { return time.Now() }
func (wall) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (wall) Since(t time.Time) time.Duration        { return time.Since(t) }
