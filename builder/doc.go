// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package builder builds packages from APKBUILD recipes inside a managed
// rootfs.
//
// [ParseRecipeFile] reads the recipe's variables and stage functions
// without running a shell. [NewPlan] turns it into a [Plan]: a root-only
// dependency stage (apk add), a fetch stage for the sources, then one
// stage per defined function among prepare, build, check, and package.
// Each stage sources the recipe inside the guest, with the recipe
// directory mounted at /build, $srcdir at /build/src, and $pkgdir at
// /build/pkg/<pkgname>.
//
// [Orchestrator.RunBuild] runs the stages in order through a supervisor.
// The first failure stops the build; a dependency failure is reported as
// [DependencyError] and anything later as [StageFailure].
package builder
