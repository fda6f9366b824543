// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/alpack/lib/process"
	"github.com/bureau-foundation/alpack/rootfs"
	"github.com/bureau-foundation/alpack/sandbox"
	"github.com/bureau-foundation/alpack/supervisor"
)

// hostRunner runs each stage's command on the host and records the
// requests it saw.
type hostRunner struct {
	err      error
	requests []supervisor.Request
}

func (h *hostRunner) Run(ctx context.Context, request supervisor.Request) (supervisor.Result, error) {
	h.requests = append(h.requests, request)
	if h.err != nil {
		return supervisor.Result{}, h.err
	}
	started := time.Now()
	command := exec.CommandContext(ctx, request.Command, request.Args...)
	command.Stdout = request.Stdout
	command.Stderr = request.Stderr
	_ = command.Run()
	code, signal := process.ExitStatus(command.ProcessState)
	return supervisor.Result{ExitCode: code, Signal: signal, Duration: time.Since(started)}, nil
}

func newTestOrchestrator(t *testing.T, runner Runner) *Orchestrator {
	t.Helper()
	orchestrator, err := New(Config{Runner: runner})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return orchestrator
}

func testTarget(t *testing.T) Target {
	t.Helper()
	return Target{Instance: "default", Rootfs: t.TempDir()}
}

func TestRunBuildStopsAtFirstFailure(t *testing.T) {
	markers := t.TempDir()
	marker := func(name string) string { return filepath.Join(markers, name) }

	plan := Plan{
		Package:   "demo",
		RecipeDir: t.TempDir(),
		Stages: []Stage{
			{Name: "A", Script: "touch " + marker("A")},
			{Name: "B", Script: "touch " + marker("B") + "; exit 3"},
			{Name: "C", Script: "touch " + marker("C")},
		},
	}
	runner := &hostRunner{}
	result, err := newTestOrchestrator(t, runner).RunBuild(context.Background(), testTarget(t), plan)

	var failure *StageFailure
	if !errors.As(err, &failure) {
		t.Fatalf("RunBuild error = %v, want *StageFailure", err)
	}
	if failure.Stage != "B" || failure.Result.ExitCode != 3 {
		t.Errorf("failure = %s exit %d, want B exit 3", failure.Stage, failure.Result.ExitCode)
	}
	if len(result.Stages) != 2 {
		t.Errorf("ran %d stages, want 2", len(result.Stages))
	}
	for _, name := range []string{"A", "B"} {
		if _, err := os.Stat(marker(name)); err != nil {
			t.Errorf("stage %s did not run: %v", name, err)
		}
	}
	if _, err := os.Stat(marker("C")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stage C ran after B failed (stat error %v)", err)
	}
}

func TestRunBuildDependencyFailure(t *testing.T) {
	plan := Plan{
		Package:      "demo",
		Dependencies: []string{"no-such-package"},
		RecipeDir:    t.TempDir(),
		Stages: []Stage{
			{Name: StageDependencies, Script: "exit 1", Root: true},
			{Name: "build", Script: "exit 0"},
		},
	}
	runner := &hostRunner{}
	_, err := newTestOrchestrator(t, runner).RunBuild(context.Background(), testTarget(t), plan)

	var dependency *DependencyError
	if !errors.As(err, &dependency) {
		t.Fatalf("RunBuild error = %v, want *DependencyError", err)
	}
	if !strings.Contains(err.Error(), "no-such-package") {
		t.Errorf("error %q should name the packages", err)
	}
	if len(runner.requests) != 1 {
		t.Errorf("ran %d stages after a dependency failure, want 1", len(runner.requests))
	}
}

func TestRunBuildStageConfiguration(t *testing.T) {
	recipeDir := t.TempDir()
	plan := Plan{
		Package:   "demo",
		RecipeDir: recipeDir,
		Env:       map[string]string{"pkgdir": "/build/pkg/demo", "TERM": "dumb"},
		Stages: []Stage{
			{Name: StageDependencies, Script: "true", Root: true},
			{Name: "build", Script: "true"},
		},
	}
	target := testTarget(t)
	target.Sandbox = sandbox.Config{
		Env:   map[string]string{"TERM": "xterm", "EXTRA": "1"},
		Binds: []sandbox.BindMount{{Host: t.TempDir(), Guest: "/cache"}},
	}

	runner := &hostRunner{}
	result, err := newTestOrchestrator(t, runner).RunBuild(context.Background(), target, plan)
	if err != nil {
		t.Fatalf("RunBuild: %v", err)
	}
	if result.OutputDir != filepath.Join(recipeDir, "pkg") {
		t.Errorf("OutputDir = %q", result.OutputDir)
	}
	if _, err := os.Stat(result.OutputDir); err != nil {
		t.Errorf("output directory not created: %v", err)
	}

	for index, request := range runner.requests {
		stage := plan.Stages[index]
		if request.Command != "/bin/sh" || len(request.Args) != 2 || request.Args[1] != stage.Script {
			t.Errorf("stage %s command = %s %v", stage.Name, request.Command, request.Args)
		}
		if request.Sandbox.Root != stage.Root {
			t.Errorf("stage %s Root = %v", stage.Name, request.Sandbox.Root)
		}
		if !request.Sandbox.NoCwdMount || request.Plan.Workdir != GuestBuildDir {
			t.Errorf("stage %s workdir = %q, NoCwdMount = %v", stage.Name, request.Plan.Workdir, request.Sandbox.NoCwdMount)
		}
		mount, ok := request.Plan.Lookup(GuestBuildDir)
		if !ok || mount.Source != recipeDir {
			t.Errorf("stage %s /build mount = %+v", stage.Name, mount)
		}
		if _, ok := request.Plan.Lookup("/cache"); !ok {
			t.Errorf("stage %s lost the caller's bind", stage.Name)
		}
		if request.Sandbox.Env["TERM"] != "dumb" || request.Sandbox.Env["EXTRA"] != "1" {
			t.Errorf("stage %s env = %v", stage.Name, request.Sandbox.Env)
		}
	}
	if len(target.Sandbox.Binds) != 1 || target.Sandbox.Env["TERM"] != "xterm" {
		t.Error("RunBuild modified the caller's sandbox configuration")
	}
}

func TestRunBuildRunnerError(t *testing.T) {
	plan := Plan{
		Package:   "demo",
		RecipeDir: t.TempDir(),
		Stages:    []Stage{{Name: "build", Script: "true"}},
	}
	busy := &rootfs.BusyError{Name: "default", PID: 1}
	_, err := newTestOrchestrator(t, &hostRunner{err: busy}).RunBuild(context.Background(), testTarget(t), plan)

	var got *rootfs.BusyError
	if !errors.As(err, &got) {
		t.Fatalf("RunBuild error = %v, want a wrapped *rootfs.BusyError", err)
	}
	if !strings.Contains(err.Error(), "stage build") {
		t.Errorf("error %q should name the stage", err)
	}
}

func TestNewRequiresRunner(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without a runner should fail")
	}
}
