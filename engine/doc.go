// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine exposes alpack's operations to the command line:
// creating a rootfs from an Alpine release, running commands in it,
// building packages from recipes, and listing or removing instances.
//
// An [Engine] owns one release fetcher, one rootfs store, and one lazily
// constructed adapter per sandbox backend. Every execution goes through a
// supervisor session, so the instance lock is held for the lifetime of the
// sandboxed process and released however it ends.
package engine
