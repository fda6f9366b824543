// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/alpack/builder"
)

// BuildPackage builds the recipe at recipePath in the named instance. When
// the settings name an output directory, the package tree is copied to
// <output_dir>/<pkgname> after a successful build.
func (e *Engine) BuildPackage(ctx context.Context, name, recipePath string, static bool) (builder.BuildResult, error) {
	recipe, err := builder.ParseRecipeFile(recipePath)
	if err != nil {
		return builder.BuildResult{}, err
	}
	instance, err := e.store.Lookup(name)
	if err != nil {
		return builder.BuildResult{}, err
	}
	base, err := e.SandboxConfig()
	if err != nil {
		return builder.BuildResult{}, err
	}
	runner, err := e.supervisor(base.Backend)
	if err != nil {
		return builder.BuildResult{}, err
	}
	orchestrator, err := builder.New(builder.Config{Runner: runner, Logger: e.logger})
	if err != nil {
		return builder.BuildResult{}, err
	}

	plan := builder.NewPlan(recipe, builder.PlanOptions{Static: static})
	e.logger.Info("building package",
		"instance", name, "package", plan.Package, "version", plan.Version,
		"static", static, "stages", len(plan.Stages))
	result, err := orchestrator.RunBuild(ctx, builder.Target{
		Instance: instance.Name,
		Rootfs:   instance.Path,
		Sandbox:  base,
		Stdout:   e.stdout,
		Stderr:   e.stderr,
	}, plan)
	if err != nil {
		return result, err
	}

	if e.settings.OutputDir != "" {
		destination := filepath.Join(e.settings.OutputDir, plan.Package)
		if err := copyTree(result.OutputDir, destination); err != nil {
			return result, fmt.Errorf("copying build output: %w", err)
		}
		result.OutputDir = destination
	}
	return result, nil
}

// copyTree copies the regular files, directories, and symlinks under
// source into destination.
func copyTree(source, destination string) error {
	return filepath.WalkDir(source, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relative, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destination, relative)
		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case entry.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		}
		return nil
	})
}

func copyFile(source, destination string, mode fs.FileMode) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
