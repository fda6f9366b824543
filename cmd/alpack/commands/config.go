// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/alpack/cmd/alpack/cli"
	"github.com/bureau-foundation/alpack/lib/config"
)

type configShowParams struct {
	cli.JSONOutput
}

func printSettings(w io.Writer, path string, settings *config.Config) {
	fmt.Fprintf(w, "# %s\n", path)
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	for _, field := range settings.Fields() {
		fmt.Fprintf(tw, "%s\t%s\n", field[0], field[1])
	}
	tw.Flush()
}

func configCommand() *cli.Command {
	var showParams configShowParams

	return &cli.Command{
		Name:    "config",
		Summary: "Show or change settings",
		Description: `Show or change the settings file. The file lives at $ALPACK_CONFIG,
else $XDG_CONFIG_HOME/alpack/config.yaml, else ~/.config/alpack/config.yaml.
ALPACK_ARCH, ALPACK_STORE, ALPACK_CACHE, and ALPACK_BACKEND override it.`,
		Subcommands: []*cli.Command{
			{
				Name:    "show",
				Summary: "Print the effective settings",
				Usage:   "alpack config show [flags]",
				Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("show", &showParams) },
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					if len(args) > 0 {
						return cli.Validation("unexpected argument: %s", args[0])
					}
					settings, path, err := loadSettings()
					if err != nil {
						return err
					}
					values := make(map[string]string)
					for _, field := range settings.Fields() {
						values[field[0]] = field[1]
					}
					if done, err := showParams.EmitJSON(values); done {
						return err
					}
					printSettings(os.Stdout, path, settings)
					return nil
				},
			},
			{
				Name:    "set",
				Summary: "Change one setting",
				Description: "Change one setting and save the file. Keys: " + strings.Join(config.Keys(), ", ") + `.
Binds take a comma-separated list of host:guest[:ro|rw]; an empty value
clears them.`,
				Usage: "alpack config set <key> <value>",
				Examples: []cli.Example{
					{Description: "Use bubblewrap by default", Command: "alpack config set backend bwrap"},
					{Description: "Always mount ~/src read-only", Command: "alpack config set binds ~/src:/src:ro"},
				},
				Run: func(_ context.Context, args []string, logger *slog.Logger) error {
					if len(args) != 2 {
						return cli.Validation("expected <key> <value>, got %d arguments", len(args))
					}
					path, err := config.Path()
					if err != nil {
						return cli.Internal("%w", err)
					}
					// Edit the file alone so environment overrides are never
					// persisted.
					settings, err := config.LoadFile(path)
					if errors.Is(err, fs.ErrNotExist) {
						settings, err = config.Default(), nil
					}
					if err != nil {
						return cli.Validation("loading settings: %w", err)
					}
					if err := settings.Set(args[0], args[1]); err != nil {
						return cli.Wrap(cli.CategoryValidation, err)
					}
					if err := settings.Save(path); err != nil {
						return cli.Internal("saving settings: %w", err)
					}
					logger.Debug("settings saved", "path", path, "key", args[0])
					fmt.Printf("%s = %s\n", args[0], args[1])
					return nil
				},
			},
		},
	}
}
