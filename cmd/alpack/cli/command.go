// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// HelpOutput receives help text printed during Execute.
var HelpOutput io.Writer = os.Stderr

// Command is a node of the alpack command tree.
type Command struct {
	Name    string
	Aliases []string

	// Summary is the one-line description in the parent's listing.
	Summary string

	// Description is the body of the command's own help.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	Examples []Example

	// Flags builds the command's flag set. Nil means no flags.
	Flags func() *pflag.FlagSet

	// Passthrough stops flag parsing at the first positional argument, so
	// "alpack run ls -la" hands "-la" to ls.
	Passthrough bool

	Subcommands []*Command

	// Run receives the arguments left after flag parsing. A command with
	// Subcommands and no Run only dispatches.
	Run func(ctx context.Context, args []string, logger *slog.Logger) error

	parent *Command
}

// Example is a help-text example.
type Example struct {
	Description string
	Command     string
}

func (c *Command) names() []string {
	return append([]string{c.Name}, c.Aliases...)
}

func (c *Command) matches(name string) bool {
	return slices.Contains(c.names(), name)
}

// Execute dispatches args through the tree and runs the selected command.
// Usage mistakes come back as validation ToolErrors naming the closest
// valid command or flag.
func (c *Command) Execute(ctx context.Context, args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(HelpOutput)
		return nil
	}

	if len(c.Subcommands) > 0 {
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			return c.dispatch(ctx, args, logger)
		}
		if c.Run == nil {
			c.PrintHelp(HelpOutput)
			if len(args) == 0 {
				return Validation("subcommand required")
			}
			return Validation("subcommand required (got flag %q)", args[0])
		}
	}

	args, helped, err := c.parseFlags(args)
	if err != nil || helped {
		return err
	}
	if c.Run == nil {
		c.PrintHelp(HelpOutput)
		return fmt.Errorf("no action defined for %q", c.fullName())
	}
	return c.Run(ctx, args, logger)
}

func (c *Command) dispatch(ctx context.Context, args []string, logger *slog.Logger) error {
	for _, sub := range c.Subcommands {
		if sub.matches(args[0]) {
			sub.parent = c
			return sub.Execute(ctx, args[1:], logger)
		}
	}
	if suggestion := suggestCommand(args[0], c.Subcommands); suggestion != "" {
		return Validation("unknown command %q (did you mean %q?)\n\nRun '%s --help' for usage.",
			args[0], suggestion, c.fullName())
	}
	return Validation("unknown command %q\n\nRun '%s --help' for usage.", args[0], c.fullName())
}

// parseFlags returns the positional arguments. helped reports that -h or
// --help was given and help has been printed.
func (c *Command) parseFlags(args []string) (positional []string, helped bool, err error) {
	if c.Flags == nil {
		return args, false, nil
	}
	flagSet := c.Flags()
	flagSet.SetInterspersed(!c.Passthrough)
	flagSet.SetOutput(io.Discard)

	err = flagSet.Parse(args)
	switch {
	case errors.Is(err, pflag.ErrHelp):
		c.PrintHelp(HelpOutput)
		return nil, true, nil
	case err != nil:
		// The failed parse leaves the set half-populated; suggest against
		// a fresh one.
		if suggestion := suggestFlag(args, c.Flags()); suggestion != "" {
			return nil, false, Validation("%v (did you mean %s?)\n\nRun '%s --help' for usage.",
				err, suggestion, c.fullName())
		}
		return nil, false, Validation("%v\n\nRun '%s --help' for usage.", err, c.fullName())
	}
	return flagSet.Args(), false, nil
}

// PrintHelp writes the command's help text to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	switch {
	case c.Description != "":
		fmt.Fprintf(w, "%s\n\n", c.Description)
	case c.Summary != "":
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	usage := c.Usage
	if usage == "" {
		usage = name + " [flags]"
		if len(c.Subcommands) > 0 {
			usage = name + " <command> [flags]"
		}
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", usage)

	if len(c.Aliases) > 0 {
		fmt.Fprintf(w, "\nAliases:\n  %s\n", strings.Join(c.names(), ", "))
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprint(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", strings.Join(sub.names(), ", "), sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		if usage := c.Flags().FlagUsages(); usage != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usage)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprint(w, "\nExamples:\n")
		for index, example := range c.Examples {
			if index > 0 {
				fmt.Fprintln(w)
			}
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

// fullName is the command path, e.g. "alpack config set".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
