// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor runs one sandboxed command per session and owns the
// rootfs lock for its duration.
//
// A session moves Idle -> Locking -> Launching -> Running -> Collecting ->
// Done, or to Failed from any non-terminal state. Locking takes the
// instance lock (a held lock fails fast with rootfs.BusyError; there is no
// queueing). Launching asks the [sandbox.Backend] to prepare and start the
// child. Running relays signals and waits. Collecting records the
// [Result], releases the lock, and updates the instance's last-used time.
// The lock release is also deferred, so it runs exactly once on every path
// out of [Supervisor.Run].
//
// Signal handling depends on whether stdin is a terminal. An interactive
// child stays in the terminal's foreground process group, so the tty
// delivers SIGINT and SIGQUIT to it directly and only SIGTERM and SIGHUP
// are relayed. A non-interactive child gets its own process group and all
// four signals are relayed to the group. Cancelling the context sends
// SIGTERM, then SIGKILL after the grace period.
package supervisor
