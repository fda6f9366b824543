// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/alpack/cmd/alpack/cli"
	"github.com/bureau-foundation/alpack/cmd/alpack/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (run, doctor) return an
		// ExitError with the desired exit code. Don't print a redundant
		// "error:" line for those.
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var toolErr *cli.ToolError
		if errors.As(err, &toolErr) && toolErr.Hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", toolErr.Hint)
		}
		os.Exit(1)
	}
}

func run() error {
	// Global flags come before the subcommand name.
	global := pflag.NewFlagSet("alpack", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(io.Discard)
	verbose := global.BoolP("verbose", "v", false, "enable debug logging (also ALPACK_DEBUG=1)")
	args := os.Args[1:]
	if err := global.Parse(args); errors.Is(err, pflag.ErrHelp) {
		args = []string{"--help"}
	} else if err != nil {
		return cli.Validation("%w\n\nRun 'alpack --help' for usage.", err)
	} else {
		args = global.Args()
	}

	// No signal context here: during a session the supervisor owns
	// SIGINT and SIGTERM and relays them to the sandboxed command.
	return commands.Root().Execute(context.Background(), args, cli.NewCommandLogger(*verbose))
}
