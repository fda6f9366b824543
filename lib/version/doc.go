// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which alpack build is running. Release builds
// inject [Version], [GitCommit], [GitDirty] and [BuildTime] with
// -ldflags -X; other builds fall back to the VCS stamp the Go toolchain
// embeds, or "unknown".
package version
