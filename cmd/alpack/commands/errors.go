// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/alpack/builder"
	"github.com/bureau-foundation/alpack/cmd/alpack/cli"
	"github.com/bureau-foundation/alpack/engine"
	"github.com/bureau-foundation/alpack/release"
	"github.com/bureau-foundation/alpack/rootfs"
	"github.com/bureau-foundation/alpack/sandbox"
	"github.com/bureau-foundation/alpack/supervisor"
)

// Classify wraps err in a cli.ToolError matching the engine's error
// taxonomy. Errors that already carry a category, and ExitErrors, pass
// through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var toolErr *cli.ToolError
	var exitErr *cli.ExitError
	if errors.As(err, &toolErr) || errors.As(err, &exitErr) {
		return err
	}
	// A session interrupted before launch exits the way a child killed by
	// the same signal would.
	var interrupted *supervisor.InterruptedError
	if errors.As(err, &interrupted) {
		return &cli.ExitError{Code: 128 + int(interrupted.Signal)}
	}

	var (
		network     *release.NetworkError
		integrity   *release.IntegrityError
		exists      *rootfs.AlreadyExistsError
		notFound    *rootfs.NotFoundError
		busy        *rootfs.BusyError
		invalidName *rootfs.InvalidNameError
		unsafe      *rootfs.UnsafePathError
		mount       *sandbox.InvalidMountError
		unavailable *sandbox.BackendUnavailableError
		dependency  *builder.DependencyError
		stage       *builder.StageFailure
		apk         *engine.ApkError
	)
	switch {
	case errors.As(err, &unavailable):
		return cli.Wrap(cli.CategoryNotFound, err).WithHint(unavailable.Remediation)
	case errors.As(err, &notFound):
		return cli.Wrap(cli.CategoryNotFound, err).
			WithHint(fmt.Sprintf("create it with `alpack setup -R %s`", notFound.Name))
	case release.IsNotFound(err):
		return cli.Wrap(cli.CategoryNotFound, err).WithHint("check the release and arch settings (`alpack config show`)")
	case errors.As(err, &busy):
		return cli.Wrap(cli.CategoryConflict, err).
			WithHint(fmt.Sprintf("wait for pid %d to finish", busy.PID))
	case errors.As(err, &exists):
		return cli.Wrap(cli.CategoryConflict, err)
	case errors.As(err, &invalidName), errors.As(err, &mount):
		return cli.Wrap(cli.CategoryValidation, err)
	case errors.As(err, &network), errors.As(err, &integrity):
		return cli.Wrap(cli.CategoryTransient, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return cli.Wrap(cli.CategoryTransient, err)
	case errors.As(err, &dependency):
		return cli.Wrap(cli.CategoryInternal, err).
			WithHint("check the package names and run `alpack update`")
	case errors.As(err, &apk):
		return cli.Wrap(cli.CategoryInternal, err).
			WithHint("repair the instance with `alpack update` or `alpack fix`")
	case errors.As(err, &stage), errors.As(err, &unsafe):
		return cli.Wrap(cli.CategoryInternal, err)
	}
	return cli.Wrap(cli.CategoryInternal, err)
}
