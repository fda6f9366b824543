// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/alpack/builder"
	"github.com/bureau-foundation/alpack/cmd/alpack/cli"
)

type buildParams struct {
	instanceParams
	Static bool `flag:"static,s" desc:"link statically (LDFLAGS=-static, CGO_ENABLED=0)"`
}

// recipePath resolves the argument to an APKBUILD file: a directory means
// its APKBUILD, no argument means ./APKBUILD.
func recipePath(args []string) (string, error) {
	if len(args) > 1 {
		return "", cli.Validation("expected one recipe path, got %d", len(args))
	}
	path := "APKBUILD"
	if len(args) == 1 {
		path = args[0]
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", cli.NotFound("recipe %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, "APKBUILD")
		if _, err := os.Stat(path); err != nil {
			return "", cli.NotFound("recipe %s: %w", path, err)
		}
	}
	return path, nil
}

func printBuild(w io.Writer, result builder.BuildResult) {
	for _, stage := range result.Stages {
		fmt.Fprintf(w, "  %-8s %s\n", stage.Stage, stage.Result.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "built %s into %s\n", result.Package, result.OutputDir)
}

func buildCommand() *cli.Command {
	var params buildParams

	return &cli.Command{
		Name:    "build",
		Summary: "Build an APKBUILD recipe inside a rootfs",
		Description: `Build the package described by an APKBUILD recipe inside a rootfs
instance. Runs, in order: apk add of makedepends, depends, and
checkdepends (as root); download and unpacking of source; then the
recipe's prepare, build, check, and package functions. The first
failing stage stops the build.

The recipe directory is mounted at /build. $srcdir is /build/src and
$pkgdir is /build/pkg/<pkgname>, so output lands in <recipe dir>/pkg
(copied to output_dir when that setting is present).`,
		Usage: "alpack build [flags] [recipe]",
		Examples: []cli.Example{
			{Description: "Build ./APKBUILD", Command: "alpack build"},
			{Description: "Build a static binary from another directory", Command: "alpack build --static ~/aports/jq"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("build", &params) },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			path, err := recipePath(args)
			if err != nil {
				return err
			}
			e, err := load(logger)
			if err != nil {
				return err
			}
			result, err := e.BuildPackage(ctx, params.instance(e.Settings()), path, params.Static)
			if err != nil {
				return Classify(err)
			}
			printBuild(os.Stdout, result)
			return nil
		},
	}
}
