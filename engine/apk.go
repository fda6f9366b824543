// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/bureau-foundation/alpack/sandbox"
	"github.com/bureau-foundation/alpack/supervisor"
)

// ApkError reports an apk invocation that exited non-zero.
type ApkError struct {
	Args   []string
	Result supervisor.Result
}

func (err *ApkError) Error() string {
	return fmt.Sprintf("apk %s: %s", strings.Join(err.Args, " "), err.Result)
}

// apkConfig is the sandbox configuration of package management: root in
// the guest, no host working directory, no persistent binds.
func (e *Engine) apkConfig() (sandbox.Config, error) {
	config, err := e.SandboxConfig()
	if err != nil {
		return sandbox.Config{}, err
	}
	config.Root = true
	config.NoCwdMount = true
	config.IgnoreExtraBinds = true
	return config, nil
}

// Apk runs apk with args as root in the named instance.
func (e *Engine) Apk(ctx context.Context, name string, args ...string) (supervisor.Result, error) {
	config, err := e.apkConfig()
	if err != nil {
		return supervisor.Result{}, err
	}
	return e.RunInSandbox(ctx, name, config, "apk", args)
}

// apkChecked runs apk and turns a non-zero exit into an ApkError.
func (e *Engine) apkChecked(ctx context.Context, name string, args ...string) error {
	result, err := e.Apk(ctx, name, args...)
	if err != nil {
		return err
	}
	if !result.Success() {
		return &ApkError{Args: args, Result: result}
	}
	return nil
}

// Add installs packages.
func (e *Engine) Add(ctx context.Context, name string, packages ...string) (supervisor.Result, error) {
	return e.Apk(ctx, name, append([]string{"add"}, packages...)...)
}

// Del removes packages.
func (e *Engine) Del(ctx context.Context, name string, packages ...string) (supervisor.Result, error) {
	return e.Apk(ctx, name, append([]string{"del"}, packages...)...)
}

// Search queries the package index.
func (e *Engine) Search(ctx context.Context, name string, terms ...string) (supervisor.Result, error) {
	return e.Apk(ctx, name, append([]string{"search"}, terms...)...)
}

// Fix reinstalls broken packages.
func (e *Engine) Fix(ctx context.Context, name string, packages ...string) (supervisor.Result, error) {
	return e.Apk(ctx, name, append([]string{"fix"}, packages...)...)
}

// Update refreshes the index and upgrades every installed package in one
// session.
func (e *Engine) Update(ctx context.Context, name string) (supervisor.Result, error) {
	config, err := e.apkConfig()
	if err != nil {
		return supervisor.Result{}, err
	}
	return e.RunInSandbox(ctx, name, config, "/bin/sh", []string{"-c", "apk update && apk upgrade"})
}
