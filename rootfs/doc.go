// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rootfs is the on-disk registry of extracted Alpine root
// filesystems.
//
// Each instance lives in its own directory under the store root:
//
//	<store>/<name>/rootfs/        extracted tree, used as / in the sandbox
//	<store>/<name>/metadata.cbor  creation time, last use, source release
//	<store>/<name>/lock           JSON pid lock while a session runs
//	<store>/<name>/lock.guard     flock target serializing lock changes
//
// Instances are created by extracting a verified archive into a
// temporary sibling directory and renaming it into place, so a failed
// extraction never leaves a half-populated instance. Overwriting an
// existing instance swaps the directories and removes the old tree
// afterwards.
//
// The pid lock records the holder's pid and start time. A lock whose
// holder no longer exists, or whose pid now belongs to a different
// process, is stale and reclaimed by the next [Store.Lock]. Check and
// claim happen under an exclusive flock on lock.guard, so two
// concurrent callers cannot both observe an unlocked instance.
//
// Archive entries are never trusted: absolute names, ".." segments and
// relative symlinks that resolve outside the tree are rejected with
// [UnsafePathError], and no write ever passes through a symlink.
package rootfs
