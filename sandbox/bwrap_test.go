// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/alpack/lib/testutil"
)

func TestBwrapPrepare(t *testing.T) {
	rootfsPath, cwd, first, _ := planFixture(t)
	t.Setenv("TERM", "xterm-256color")

	config := Config{
		Backend:    Bwrap,
		Cwd:        cwd,
		Binds:      []BindMount{{Host: first, Guest: "/data", ReadOnly: true}},
		Env:        map[string]string{"HOME": "/work", "EXTRA": "1"},
		NetIsolate: true,
	}
	plan, err := PlanMounts(rootfsPath, config)
	if err != nil {
		t.Fatal(err)
	}

	backend := NewBwrap(BackendOptions{Path: fakeBackend(t, "bwrap")})
	spec, err := backend.Prepare(plan, config)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	argStr := strings.Join(spec.Args, " ")

	for _, want := range []string{
		"--bind " + rootfsPath + " /",
		"--proc /proc",
		"--dev /dev",
		"--ro-bind /sys /sys",
		"--tmpfs /tmp",
		"--bind " + cwd + " " + cwd,
		"--ro-bind " + first + " /data",
		"--unshare-pid",
		"--unshare-net",
		"--die-with-parent",
		"--chdir " + cwd,
		"--clearenv",
		"--setenv HOME /work",
		"--setenv EXTRA 1",
		"--setenv PATH " + GuestPath,
		"--setenv TERM xterm-256color",
		"--setenv ALPACK_SANDBOX 1",
	} {
		if !strings.Contains(argStr, want) {
			t.Errorf("missing %q in %s", want, argStr)
		}
	}
	if strings.Contains(argStr, "--unshare-user") {
		t.Error("--unshare-user set without Root")
	}

	// The rootfs is mounted before anything lands on top of it.
	if spec.Args[0] != "--bind" || spec.Args[1] != rootfsPath || spec.Args[2] != "/" {
		t.Errorf("rootfs is not the first mount: %v", spec.Args[:3])
	}
	if spec.Args[len(spec.Args)-1] != "--" {
		t.Errorf("args do not end with --: %v", spec.Args)
	}

	// --setenv pairs are sorted by key.
	var keys []string
	for index, arg := range spec.Args {
		if arg == "--setenv" {
			keys = append(keys, spec.Args[index+1])
		}
	}
	for index := 1; index < len(keys); index++ {
		if keys[index-1] > keys[index] {
			t.Errorf("setenv keys not sorted: %v", keys)
			break
		}
	}

	if len(spec.Env) != 2 || spec.Env[1] != "TERM=xterm-256color" {
		t.Errorf("backend process env = %v, want only PATH and TERM", spec.Env)
	}
	if len(spec.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", spec.Warnings)
	}
}

func TestBwrapPrepareRoot(t *testing.T) {
	rootfsPath, cwd, _, _ := planFixture(t)
	config := Config{Cwd: cwd, Root: true, NoCwdMount: true}
	plan, err := PlanMounts(rootfsPath, config)
	if err != nil {
		t.Fatal(err)
	}

	spec, err := NewBwrap(BackendOptions{Path: fakeBackend(t, "bwrap")}).Prepare(plan, config)
	if err != nil {
		t.Fatal(err)
	}
	argStr := strings.Join(spec.Args, " ")
	for _, want := range []string{"--unshare-user --uid 0 --gid 0", "--chdir /root", "--setenv HOME /root"} {
		if !strings.Contains(argStr, want) {
			t.Errorf("missing %q in %s", want, argStr)
		}
	}
	if strings.Contains(argStr, "--unshare-net") {
		t.Error("--unshare-net set without NetIsolate")
	}
}

func TestBwrapLaunch(t *testing.T) {
	rootfsPath, cwd, _, _ := planFixture(t)
	t.Setenv("ALPACK_LEAK_CHECK", "secret")

	backend := NewBwrap(BackendOptions{Path: fakeBackend(t, "bwrap")})
	if err := backend.Available(); err != nil {
		t.Fatalf("Available: %v", err)
	}
	config := Config{Cwd: cwd}
	plan, err := PlanMounts(rootfsPath, config)
	if err != nil {
		t.Fatal(err)
	}
	spec, err := backend.Prepare(plan, config)
	if err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	child, err := backend.Launch(context.Background(), spec, "echo", []string{"hello world"}, LaunchOptions{Stdout: &stdout})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	state, err := child.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if state.ExitCode() != 0 {
		t.Errorf("exit code = %d", state.ExitCode())
	}

	output := stdout.String()
	if !strings.Contains(output, "args: ") || !strings.Contains(output, "-- echo hello world") {
		t.Errorf("fake bwrap did not receive the command: %q", output)
	}
	if strings.Contains(output, "ALPACK_LEAK_CHECK") {
		t.Errorf("host environment leaked into the backend process: %q", output)
	}
}

func TestBwrapUnavailable(t *testing.T) {
	rootfsPath, cwd, _, _ := planFixture(t)

	backend := NewBwrap(BackendOptions{Path: "/nonexistent/alpack/bwrap"})
	if !IsBackendUnavailable(backend.Available()) {
		t.Fatalf("Available() = %v, want BackendUnavailableError", backend.Available())
	}

	config := Config{Cwd: cwd}
	plan, err := PlanMounts(rootfsPath, config)
	if err != nil {
		t.Fatal(err)
	}
	spec, err := backend.Prepare(plan, config)
	if err != nil {
		t.Fatalf("Prepare should work without the executable: %v", err)
	}
	if spec.Path != "bwrap" {
		t.Errorf("Path = %q, want the bare executable name", spec.Path)
	}

	_, err = backend.Launch(context.Background(), spec, "true", nil, LaunchOptions{})
	var unavailable *BackendUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Launch error = %v, want BackendUnavailableError", err)
	}
	if unavailable.Backend != Bwrap || unavailable.Remediation == "" {
		t.Errorf("error = %+v, want backend and remediation", unavailable)
	}
}

func TestBwrapLaunchCancelled(t *testing.T) {
	rootfsPath, cwd, _, _ := planFixture(t)
	backend := NewBwrap(BackendOptions{Path: fakeBackend(t, "bwrap")})
	plan, err := PlanMounts(rootfsPath, Config{Cwd: cwd})
	if err != nil {
		t.Fatal(err)
	}
	spec, err := backend.Prepare(plan, Config{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := backend.Launch(ctx, spec, "true", nil, LaunchOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Launch error = %v, want context.Canceled", err)
	}
}

// fakeBackend writes a script that prints its arguments and environment
// instead of sandboxing anything.
func fakeBackend(t *testing.T, name string) string {
	t.Helper()
	return testutil.WriteExecutable(t, t.TempDir(), name, `echo "args: $*"
env`)
}
