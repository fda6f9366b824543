// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides helpers for the alpack binary entrypoint
// and for reasoning about other processes on the host:
//
//   - [Fatal] reports an error to stderr before the structured logger
//     exists and exits 1.
//   - [ExitStatus] converts a finished child's state into an exit code
//     and terminating signal, using the shell's 128+signal convention.
//   - [Alive] and [StartTime] back the rootfs pid lock: a lock holder
//     is live only if the pid exists and, when a start time was
//     recorded, the process at that pid started at the same moment.
package process
