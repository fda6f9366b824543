// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox runs commands inside an extracted Alpine rootfs through
// one of two unprivileged backends: proot (ptrace syscall rewriting) and
// bubblewrap (Linux user and mount namespaces).
//
// Planning and launching are separate steps. [PlanMounts] turns a [Config]
// and a rootfs path into an ordered, deduplicated [Plan]: the rootfs at /,
// the baseline pseudo-filesystems, the caller's working directory, and any
// extra [BindMount] entries. Extra binds targeting the same guest path
// resolve last-wins. Invalid entries are reported as [InvalidMountError]
// before anything is spawned.
//
// A [Backend] translates a Plan into a [LaunchSpec] (Prepare) and starts the
// child (Launch). Both adapters honor the same contract: guest working
// directory, the full mount plan, and a guest environment built from
// [Environment] with no host variables leaking into the backend process.
// Differences are absorbed here. proot has no read-only bind and no network
// namespace, so read-only mounts degrade to plain binds with a warning and
// [Backend.SupportsNetworkIsolation] reports false. bwrap mounts a tmpfs at
// /tmp where proot uses the rootfs's own /tmp.
//
// Backend executables are located once, at construction, by [LookupExecutable].
// A missing executable surfaces as [BackendUnavailableError] from Launch with
// a remediation hint. Prepare still works, so a dry run can print the command
// line that would have been used.
//
// [DetectCapabilities] and [Validator] back the pre-flight checks of
// `alpack doctor`.
package sandbox
