// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/alpack/cmd/alpack/cli"
	"github.com/bureau-foundation/alpack/lib/config"
	"github.com/bureau-foundation/alpack/sandbox"
)

type doctorParams struct {
	instanceParams
	cli.JSONOutput
	Backend string `flag:"backend" desc:"backend to check (default: settings)"`
}

// checkResult is the --json form of one check.
type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Remedy  string `json:"remedy,omitempty"`
}

// runChecks performs every pre-flight check against settings.
// The launch check constructs the selected adapter with options.
func runChecks(settings *config.Config, instance, backend string, options sandbox.BackendOptions, caps *sandbox.Capabilities, rootfsPath string) (*sandbox.Validator, error) {
	kind, err := sandbox.ParseBackendKind(backend)
	if err != nil {
		return nil, cli.Wrap(cli.CategoryValidation, err)
	}
	launcher, err := sandbox.NewBackend(kind, options)
	if err != nil {
		return nil, cli.Wrap(cli.CategoryValidation, err)
	}
	validator := sandbox.NewValidator()
	validator.ValidateBackends(caps, kind)
	validator.ValidateLauncher(launcher)
	validator.ValidateUserNamespaces(kind)
	validator.ValidateWritableDirectory("store", settings.StoreDir)
	validator.ValidateWritableDirectory("cache", settings.CacheDir)
	validator.ValidateRootfs(instance, rootfsPath)
	return validator, nil
}

func checkResults(validator *sandbox.Validator) []checkResult {
	var results []checkResult
	for _, check := range validator.Results() {
		results = append(results, checkResult{
			Name:    check.Name,
			Status:  check.Status.String(),
			Message: check.Message,
			Remedy:  check.Remedy,
		})
	}
	return results
}

func doctorCommand() *cli.Command {
	var params doctorParams

	return &cli.Command{
		Name:    "doctor",
		Summary: "Check that this host can run alpack",
		Description: `Check the sandbox backends, user namespace support, the store and
cache directories, and the selected rootfs instance. For each failure,
prints what to install or run to fix it. Exits 1 when any check fails.`,
		Usage: "alpack doctor [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("doctor", &params) },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			settings, _, err := loadSettings()
			if err != nil {
				return err
			}
			backend := settings.Backend
			if params.Backend != "" {
				backend = params.Backend
			}

			name := params.instance(settings)
			rootfsPath := ""
			if e, err := openEngine(settings, logger); err == nil {
				if instance, err := e.Store().Lookup(name); err == nil {
					rootfsPath = instance.Path
				}
			}
			if rootfsPath == "" {
				// Points at where the instance would live so the check
				// reports it as not set up.
				rootfsPath = settings.StoreDir + "/" + name + "/rootfs"
			}

			validator, err := runChecks(settings, name, backend, sandbox.BackendOptions{Logger: logger}, sandbox.DetectCapabilities(), rootfsPath)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(checkResults(validator)); done {
				if err != nil {
					return err
				}
			} else {
				validator.PrintResults(os.Stdout)
			}
			if validator.HasErrors() {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
