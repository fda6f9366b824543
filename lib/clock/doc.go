// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that stamp records (creation and last-used times in the
// rootfs store), measure durations (the supervisor's ExecutionResult),
// or wait between attempts (the release fetcher's linear backoff) take
// a Clock instead of calling the time package directly. Production
// code passes Real(). Tests pass Stepping(), a clock that never blocks:
// every wait advances the fake time by the requested duration and
// returns immediately, and the requested durations are recorded so
// tests can assert on a backoff schedule.
package clock
