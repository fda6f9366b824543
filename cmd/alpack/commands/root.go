// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/alpack/cmd/alpack/cli"
	"github.com/bureau-foundation/alpack/engine"
	"github.com/bureau-foundation/alpack/lib/config"
	"github.com/bureau-foundation/alpack/lib/version"
)

// Root builds and returns the complete alpack command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "alpack",
		Description: `alpack: portable Alpine Linux root filesystems without root.

Download an Alpine minirootfs, run commands in it through proot or
bubblewrap, manage its packages with apk, and build APKBUILD recipes
into static binaries.

Global flags go before the command: -v/--verbose enables debug logging
(as does ALPACK_DEBUG=1).`,
		Subcommands: []*cli.Command{
			setupCommand(),
			runCommand(),
			listCommand(),
			removeCommand(),
			buildCommand(),
			apkCommand(),
			addCommand(),
			delCommand(),
			searchCommand(),
			updateCommand(),
			fixCommand(),
			configCommand(),
			doctorCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					if len(args) > 0 {
						return cli.Validation("unexpected argument: %s", args[0])
					}
					fmt.Println(version.Full())
					return nil
				},
			},
		},
	}
}

// instanceParams selects the rootfs a command operates on.
type instanceParams struct {
	Rootfs string `flag:"rootfs,R" desc:"rootfs instance name (default: settings default_instance)"`
}

// instance returns the selected name, falling back to the settings.
func (p instanceParams) instance(settings *config.Config) string {
	if p.Rootfs != "" {
		return p.Rootfs
	}
	return settings.DefaultInstance
}

// loadSettings reads the settings file with environment overrides.
func loadSettings() (*config.Config, string, error) {
	settings, path, err := config.Load()
	if err != nil {
		return nil, path, cli.Validation("loading settings: %w", err)
	}
	return settings, path, nil
}

// openEngine is replaced in tests.
var openEngine = func(settings *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	return engine.New(engine.Config{Settings: settings, Logger: logger})
}

// load reads the settings and constructs the engine.
func load(logger *slog.Logger) (*engine.Engine, error) {
	settings, path, err := loadSettings()
	if err != nil {
		return nil, err
	}
	e, err := openEngine(settings, logger)
	if err != nil {
		return nil, cli.Validation("invalid settings in %s: %w", path, err)
	}
	return e, nil
}
