// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/bureau-foundation/alpack/sandbox"
	"github.com/bureau-foundation/alpack/supervisor"
)

// Prepared is a fully planned invocation that has not been started.
type Prepared struct {
	Instance string
	Plan     sandbox.Plan
	Spec     sandbox.LaunchSpec
}

// Prepare plans the mounts and backend command line for running in the
// named instance without starting anything. It backs --dry-run and works
// even when the backend executable is missing.
func (e *Engine) Prepare(name string, config sandbox.Config) (Prepared, error) {
	instance, err := e.store.Lookup(name)
	if err != nil {
		return Prepared{}, err
	}
	plan, err := sandbox.PlanMounts(instance.Path, config)
	if err != nil {
		return Prepared{}, err
	}
	backend, err := e.Backend(config.Backend)
	if err != nil {
		return Prepared{}, err
	}
	spec, err := backend.Prepare(plan, config)
	if err != nil {
		return Prepared{}, err
	}
	return Prepared{Instance: instance.Name, Plan: plan, Spec: spec}, nil
}

// RunInSandbox runs command with args in the named instance and returns
// its result. A non-zero exit is a Result, not an error; errors are
// reserved for failures to get the command running (unknown instance,
// invalid binds, busy lock, missing backend).
func (e *Engine) RunInSandbox(ctx context.Context, name string, config sandbox.Config, command string, args []string) (supervisor.Result, error) {
	instance, err := e.store.Lookup(name)
	if err != nil {
		return supervisor.Result{}, err
	}
	plan, err := sandbox.PlanMounts(instance.Path, config)
	if err != nil {
		return supervisor.Result{}, err
	}
	runner, err := e.supervisor(config.Backend)
	if err != nil {
		return supervisor.Result{}, err
	}
	return runner.Run(ctx, supervisor.Request{
		Instance: instance.Name,
		Plan:     plan,
		Sandbox:  config,
		Command:  command,
		Args:     args,
		Stdin:    e.stdin,
		Stdout:   e.stdout,
		Stderr:   e.stderr,
	})
}
