// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/alpack/cmd/alpack/cli"
	"github.com/bureau-foundation/alpack/engine"
	"github.com/bureau-foundation/alpack/supervisor"
)

// apkAction runs one package operation against the selected instance.
type apkAction func(ctx context.Context, e *engine.Engine, name string, args []string) (supervisor.Result, error)

// apkSubcommand builds a command that forwards its arguments to apk as
// root in the selected instance and exits with apk's status.
func apkSubcommand(command cli.Command, needsArgs bool, action apkAction) *cli.Command {
	var params instanceParams
	command.Passthrough = true
	command.Flags = func() *pflag.FlagSet { return cli.FlagsFromParams(command.Name, &params) }
	command.Run = func(ctx context.Context, args []string, logger *slog.Logger) error {
		if needsArgs && len(args) == 0 {
			return cli.Validation("%s: at least one argument is required", command.Name)
		}
		e, err := load(logger)
		if err != nil {
			return err
		}
		result, err := action(ctx, e, params.instance(e.Settings()), args)
		if err != nil {
			return Classify(err)
		}
		if !result.Success() {
			return &cli.ExitError{Code: result.ExitCode}
		}
		return nil
	}
	return &command
}

func apkCommand() *cli.Command {
	return apkSubcommand(cli.Command{
		Name:    "apk",
		Summary: "Run apk with arbitrary arguments as root",
		Usage:   "alpack apk [-R name] <apk arguments...>",
		Examples: []cli.Example{
			{Description: "List installed packages", Command: "alpack apk info -v"},
		},
	}, true, func(ctx context.Context, e *engine.Engine, name string, args []string) (supervisor.Result, error) {
		return e.Apk(ctx, name, args...)
	})
}

func addCommand() *cli.Command {
	return apkSubcommand(cli.Command{
		Name:    "add",
		Aliases: []string{"install"},
		Summary: "Install packages",
		Usage:   "alpack add [-R name] <package>...",
	}, true, func(ctx context.Context, e *engine.Engine, name string, args []string) (supervisor.Result, error) {
		return e.Add(ctx, name, args...)
	})
}

func delCommand() *cli.Command {
	return apkSubcommand(cli.Command{
		Name:    "del",
		Aliases: []string{"uninstall"},
		Summary: "Remove packages",
		Usage:   "alpack del [-R name] <package>...",
	}, true, func(ctx context.Context, e *engine.Engine, name string, args []string) (supervisor.Result, error) {
		return e.Del(ctx, name, args...)
	})
}

func searchCommand() *cli.Command {
	return apkSubcommand(cli.Command{
		Name:    "search",
		Summary: "Search the package index",
		Usage:   "alpack search [-R name] <pattern>...",
	}, true, func(ctx context.Context, e *engine.Engine, name string, args []string) (supervisor.Result, error) {
		return e.Search(ctx, name, args...)
	})
}

func updateCommand() *cli.Command {
	return apkSubcommand(cli.Command{
		Name:    "update",
		Aliases: []string{"upgrade"},
		Summary: "Refresh the package index and upgrade every package",
		Usage:   "alpack update [-R name]",
	}, false, func(ctx context.Context, e *engine.Engine, name string, args []string) (supervisor.Result, error) {
		if len(args) > 0 {
			return supervisor.Result{}, cli.Validation("unexpected argument: %s", args[0])
		}
		return e.Update(ctx, name)
	})
}

func fixCommand() *cli.Command {
	return apkSubcommand(cli.Command{
		Name:    "fix",
		Summary: "Repair broken packages",
		Usage:   "alpack fix [-R name] [package...]",
	}, false, func(ctx context.Context, e *engine.Engine, name string, args []string) (supervisor.Result, error) {
		return e.Fix(ctx, name, args...)
	})
}
