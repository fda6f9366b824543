// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/alpack/cmd/alpack/cli"
	"github.com/bureau-foundation/alpack/sandbox"
)

// defaultShell is started when run is given no command.
const defaultShell = "/bin/sh"

type runParams struct {
	instanceParams
	Root             bool     `flag:"root,0" desc:"run as uid 0 inside the rootfs"`
	IgnoreExtraBinds bool     `flag:"ignore-extra-binds,i" desc:"skip the binds from the settings file"`
	Binds            []string `flag:"bind,b" desc:"extra bind mount host[:guest][:ro|rw] (repeatable)"`
	Env              []string `flag:"env,e" desc:"set KEY=VALUE in the guest environment (repeatable)"`
	Workdir          string   `flag:"workdir,w" desc:"working directory inside the rootfs"`
	NoCwd            bool     `flag:"no-cwd" desc:"do not mount the current directory"`
	NetIsolate       bool     `flag:"net-isolate" desc:"run without network access (bwrap only)"`
	Backend          string   `flag:"backend" desc:"sandbox backend: proot or bwrap (default: settings)"`
	DryRun           bool     `flag:"dry-run" desc:"print the backend command line instead of running it"`
	Command          string   `flag:"command,c" desc:"shell command string to run with /bin/sh -c"`
}

// sandboxConfig merges the flags over the settings' base configuration.
func (p runParams) sandboxConfig(base sandbox.Config) (sandbox.Config, error) {
	config := base
	if p.Backend != "" {
		kind, err := sandbox.ParseBackendKind(p.Backend)
		if err != nil {
			return sandbox.Config{}, cli.Wrap(cli.CategoryValidation, err)
		}
		config.Backend = kind
	}
	binds, err := sandbox.ParseBinds(p.Binds)
	if err != nil {
		return sandbox.Config{}, cli.Wrap(cli.CategoryValidation, err)
	}
	env, err := sandbox.ParseEnv(p.Env)
	if err != nil {
		return sandbox.Config{}, cli.Wrap(cli.CategoryValidation, err)
	}
	config.Binds = binds
	config.Env = env
	config.Workdir = p.Workdir
	config.NoCwdMount = p.NoCwd
	config.IgnoreExtraBinds = p.IgnoreExtraBinds
	config.NetIsolate = p.NetIsolate
	config.Root = p.Root
	return config, nil
}

// commandLine returns what to run: -c wraps a shell string, no arguments
// start an interactive shell.
func (p runParams) commandLine(args []string) (string, []string, error) {
	switch {
	case p.Command != "" && len(args) > 0:
		return "", nil, cli.Validation("--command and positional arguments are mutually exclusive")
	case p.Command != "":
		return defaultShell, []string{"-c", p.Command}, nil
	case len(args) == 0:
		return defaultShell, nil, nil
	}
	return args[0], args[1:], nil
}

func runCommand() *cli.Command {
	var params runParams

	return &cli.Command{
		Name:        "run",
		Summary:     "Run a command inside a rootfs",
		Passthrough: true,
		Description: `Run a command inside a rootfs instance through the configured sandbox
backend. With no command, starts an interactive /bin/sh.

The current directory is mounted read-write at the same path and used
as the working directory unless --no-cwd or --workdir says otherwise.
/proc, /dev, /sys, /tmp, and the host's resolv.conf are always present.
Signals are forwarded to the command, and alpack exits with the
command's own exit status.

Flags must come before the command; everything after it is passed
through untouched.`,
		Usage: "alpack run [flags] [command [args...]]",
		Examples: []cli.Example{
			{Description: "Open a shell in the default instance", Command: "alpack run"},
			{Description: "Run as root with an extra read-only bind", Command: "alpack run -0 -b ~/src:/src:ro make -C /src"},
			{Description: "Run a shell pipeline", Command: `alpack run -c "apk info | wc -l"`},
			{Description: "Show the bwrap invocation", Command: "alpack run --backend bwrap --dry-run uname -a"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("run", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			command, commandArgs, err := params.commandLine(args)
			if err != nil {
				return err
			}
			e, err := load(logger)
			if err != nil {
				return err
			}
			base, err := e.SandboxConfig()
			if err != nil {
				return cli.Wrap(cli.CategoryValidation, err)
			}
			config, err := params.sandboxConfig(base)
			if err != nil {
				return err
			}
			name := params.instance(e.Settings())

			if params.DryRun {
				prepared, err := e.Prepare(name, config)
				if err != nil {
					return Classify(err)
				}
				for _, warning := range prepared.Spec.Warnings {
					logger.Warn(warning, "backend", prepared.Spec.Backend)
				}
				fmt.Println(sandbox.DryRun(prepared.Spec, command, commandArgs))
				return nil
			}

			result, err := e.RunInSandbox(ctx, name, config, command, commandArgs)
			if err != nil {
				return Classify(err)
			}
			logger.Debug("command finished", "instance", name, "result", result.String())
			if !result.Success() {
				return &cli.ExitError{Code: result.ExitCode}
			}
			return nil
		},
	}
}
