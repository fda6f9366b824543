// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/alpack/cmd/alpack/cli"
	"github.com/bureau-foundation/alpack/rootfs"
)

type listParams struct {
	cli.JSONOutput
}

// instanceSummary is the --json form of one instance.
type instanceSummary struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Arch      string    `json:"arch"`
	Release   string    `json:"release"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	LockedBy  int       `json:"locked_by,omitempty"`
}

func summarize(instances []rootfs.Instance) []instanceSummary {
	summaries := make([]instanceSummary, 0, len(instances))
	for _, instance := range instances {
		summary := instanceSummary{
			Name:      instance.Name,
			Version:   instance.Metadata.Version,
			Arch:      instance.Metadata.Release.Arch,
			Release:   instance.Metadata.Release.Version,
			Path:      instance.Path,
			CreatedAt: instance.Metadata.CreatedAt,
			LastUsed:  instance.Metadata.LastUsed,
		}
		if instance.Lock.Held {
			summary.LockedBy = instance.Lock.PID
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// printInstances writes the human-readable table.
func printInstances(w io.Writer, summaries []instanceSummary, now time.Time) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "no rootfs instances (create one with `alpack setup`)")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tARCH\tCREATED\tLAST USED\tSTATUS")
	for _, summary := range summaries {
		status := "idle"
		if summary.LockedBy != 0 {
			status = fmt.Sprintf("in use (pid %d)", summary.LockedBy)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			summary.Name, summary.Version, summary.Arch,
			humanize.RelTime(summary.CreatedAt, now, "ago", "from now"),
			humanize.RelTime(summary.LastUsed, now, "ago", "from now"),
			status)
	}
	tw.Flush()
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Summary: "List rootfs instances",
		Usage:   "alpack list [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("list", &params) },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			e, err := load(logger)
			if err != nil {
				return err
			}
			instances, err := e.ListInstances()
			if err != nil {
				return Classify(err)
			}
			summaries := summarize(instances)
			if done, err := params.EmitJSON(summaries); done {
				return err
			}
			printInstances(os.Stdout, summaries, time.Now())
			return nil
		},
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:    "remove",
		Aliases: []string{"rm"},
		Summary: "Delete rootfs instances",
		Description: `Delete one or more rootfs instances and everything inside them.
An instance in use by a running session is refused. Cached release
archives are kept.`,
		Usage: "alpack remove <name>...",
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return cli.Validation("at least one instance name is required")
			}
			e, err := load(logger)
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := e.RemoveInstance(name); err != nil {
					return Classify(err)
				}
				fmt.Printf("removed %s\n", name)
			}
			return nil
		},
	}
}
