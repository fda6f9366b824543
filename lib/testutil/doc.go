// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by alpack's tests.
//
// [RequireReceive] and [RequireClosed] bound channel waits so a hung
// child process fails the test instead of stalling it. [WriteExecutable]
// writes a shell script that stands in for proot, bwrap or apk.
//
// Helpers fail the test with t.Fatalf rather than returning errors.
package testutil
