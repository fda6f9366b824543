// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/alpack/supervisor"
)

// DependencyError reports that installing build dependencies failed. It
// points at the rootfs (network, repositories, package names) rather than
// the recipe's sources.
type DependencyError struct {
	Packages []string
	Result   supervisor.Result
}

func (err *DependencyError) Error() string {
	return fmt.Sprintf("installing build dependencies (%s) failed: %s",
		strings.Join(err.Packages, " "), err.Result)
}

// StageFailure reports a fetch, compile, or package stage that exited
// non-zero or was killed. Later stages were not run.
type StageFailure struct {
	Stage  string
	Result supervisor.Result
}

func (err *StageFailure) Error() string {
	return fmt.Sprintf("build stage %s failed: %s", err.Stage, err.Result)
}
