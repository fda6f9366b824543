// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/alpack/sandbox"
	"github.com/bureau-foundation/alpack/supervisor"
)

// Runner executes one supervised command. *supervisor.Supervisor
// implements it.
type Runner interface {
	Run(ctx context.Context, request supervisor.Request) (supervisor.Result, error)
}

// Config holds the orchestrator's collaborators.
type Config struct {
	Runner Runner
	Logger *slog.Logger
}

// Target is the instance a build runs in.
type Target struct {
	Instance string
	Rootfs   string

	// Sandbox is the base configuration for every stage. Binds, Env,
	// Workdir, NoCwdMount, and Root are set per stage on a copy.
	Sandbox sandbox.Config

	Stdout io.Writer
	Stderr io.Writer
}

// StageResult is one executed stage.
type StageResult struct {
	Stage  string
	Result supervisor.Result
}

// BuildResult lists every stage that ran.
type BuildResult struct {
	Package   string
	Stages    []StageResult
	OutputDir string
}

// Orchestrator runs build plans stage by stage.
type Orchestrator struct {
	runner Runner
	logger *slog.Logger
}

// New returns an Orchestrator.
func New(config Config) (*Orchestrator, error) {
	if config.Runner == nil {
		return nil, errors.New("builder: runner is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{runner: config.Runner, logger: logger}, nil
}

// RunBuild executes plan's stages in order. The first stage that exits
// non-zero or is killed stops the build: a failing dependency stage is a
// DependencyError, any other a StageFailure. Errors from the runner itself
// (a busy rootfs, a missing backend) are returned wrapped with the stage
// name. Nothing is retried.
func (o *Orchestrator) RunBuild(ctx context.Context, target Target, plan Plan) (BuildResult, error) {
	result := BuildResult{Package: plan.Package, OutputDir: plan.OutputDir()}
	if err := os.MkdirAll(plan.OutputDir(), 0o755); err != nil {
		return result, fmt.Errorf("creating output directory: %w", err)
	}
	logger := o.logger.With("instance", target.Instance, "package", plan.Package)

	for _, stage := range plan.Stages {
		config := stageConfig(target.Sandbox, plan, stage)
		mounts, err := sandbox.PlanMounts(target.Rootfs, config)
		if err != nil {
			return result, fmt.Errorf("stage %s: %w", stage.Name, err)
		}

		logger.Info("build stage starting", "stage", stage.Name)
		outcome, err := o.runner.Run(ctx, supervisor.Request{
			Instance: target.Instance,
			Plan:     mounts,
			Sandbox:  config,
			Command:  "/bin/sh",
			Args:     []string{"-c", stage.Script},
			Stdout:   target.Stdout,
			Stderr:   target.Stderr,
		})
		if err != nil {
			return result, fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		result.Stages = append(result.Stages, StageResult{Stage: stage.Name, Result: outcome})

		if !outcome.Success() {
			logger.Error("build stage failed", "stage", stage.Name, "exit_code", outcome.ExitCode, "signal", outcome.Signal)
			if stage.Name == StageDependencies {
				return result, &DependencyError{Packages: plan.Dependencies, Result: outcome}
			}
			return result, &StageFailure{Stage: stage.Name, Result: outcome}
		}
		logger.Info("build stage finished", "stage", stage.Name, "duration", outcome.Duration)

		if err := ctx.Err(); err != nil {
			return result, err
		}
	}
	return result, nil
}

// stageConfig derives the sandbox configuration of one stage: the recipe
// directory at /build as the working directory, no host cwd mount, and
// the plan's environment over the caller's.
func stageConfig(base sandbox.Config, plan Plan, stage Stage) sandbox.Config {
	config := base
	config.Binds = append(append([]sandbox.BindMount(nil), base.Binds...),
		sandbox.BindMount{Host: plan.RecipeDir, Guest: GuestBuildDir})
	config.Workdir = GuestBuildDir
	config.NoCwdMount = true
	config.Root = stage.Root

	config.Env = make(map[string]string, len(base.Env)+len(plan.Env))
	for key, value := range base.Env {
		config.Env[key] = value
	}
	for key, value := range plan.Env {
		config.Env[key] = value
	}
	return config
}
