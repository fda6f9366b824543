// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/alpack/cmd/alpack/cli"
	"github.com/bureau-foundation/alpack/engine"
)

type setupParams struct {
	instanceParams
	Release     string `flag:"release,r" desc:"Alpine release: latest-stable, edge, or X.Y.Z (default: settings)"`
	Arch        string `flag:"arch,a" desc:"Alpine architecture (default: settings)"`
	Mirror      string `flag:"mirror" desc:"mirror base URL (default: settings)"`
	Overwrite   bool   `flag:"overwrite" desc:"replace an existing instance"`
	Minimal     bool   `flag:"minimal,m" desc:"skip installing the development packages"`
	Refresh     bool   `flag:"refresh" desc:"download the release even when it is cached"`
	NoBootstrap bool   `flag:"no-bootstrap" desc:"skip every apk step after extraction"`
}

func setupCommand() *cli.Command {
	var params setupParams

	return &cli.Command{
		Name:    "setup",
		Summary: "Download an Alpine release and create a rootfs instance",
		Description: `Download the Alpine minirootfs for the configured release and
architecture, verify its SHA-256 checksum, extract it as a rootfs
instance, and bootstrap apk in it.

Verified archives are cached, so creating further instances from the
same release does not download it again. A full bootstrap installs
alpine-sdk, autoconf, automake, cmake, and go; --minimal only refreshes
the package index.`,
		Usage: "alpack setup [flags]",
		Examples: []cli.Example{
			{Description: "Create the default instance", Command: "alpack setup"},
			{Description: "Create an edge instance without build tools", Command: "alpack setup -R edge --release edge --minimal"},
			{Description: "Recreate an instance from a fresh download", Command: "alpack setup --overwrite --refresh"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("setup", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			e, err := load(logger)
			if err != nil {
				return err
			}

			rel := e.Release()
			if params.Release != "" {
				rel.Version = params.Release
			}
			if params.Arch != "" {
				rel.Arch = params.Arch
			}
			if params.Mirror != "" {
				rel.Mirror = params.Mirror
			}
			if err := rel.Validate(); err != nil {
				return cli.Wrap(cli.CategoryValidation, err)
			}

			name := params.instance(e.Settings())
			instance, err := e.InitRootfs(ctx, rel, name, engine.InitOptions{
				Overwrite:   params.Overwrite,
				Minimal:     params.Minimal,
				Refresh:     params.Refresh,
				NoBootstrap: params.NoBootstrap,
			})
			if err != nil {
				return Classify(err)
			}
			fmt.Printf("rootfs %q ready: Alpine %s (%s) at %s\n",
				instance.Name, instance.Metadata.Version, instance.Metadata.Release.Arch, instance.Path)
			return nil
		},
	}
}
