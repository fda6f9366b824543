// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// GuestPath is the PATH every guest command starts with.
const GuestPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Backend is the capability set shared by the proot and bwrap adapters.
type Backend interface {
	Kind() BackendKind

	// Prepare translates a plan into the backend's invocation.
	Prepare(plan Plan, config Config) (LaunchSpec, error)

	// Launch starts command inside the sandbox described by spec. It
	// returns a BackendUnavailableError when the backend's executable was
	// not found at construction.
	Launch(ctx context.Context, spec LaunchSpec, command string, args []string, options LaunchOptions) (*Child, error)

	// SupportsNetworkIsolation reports whether Config.NetIsolate has any
	// effect. Callers treat a false result as reduced isolation, not an
	// error.
	SupportsNetworkIsolation() bool
}

// LaunchSpec is a prepared backend invocation minus the guest command.
type LaunchSpec struct {
	Backend BackendKind

	// Path is the backend executable. For an unavailable backend it is
	// the bare executable name.
	Path string

	// Args precede the guest command on the backend's command line.
	Args []string

	// Env is the complete environment of the backend process.
	Env []string

	// Warnings describe isolation the backend could not provide.
	Warnings []string
}

// Argv returns the full backend command line for command and args.
func (s LaunchSpec) Argv(command string, args []string) []string {
	argv := make([]string, 0, 1+len(s.Args)+1+len(args))
	argv = append(argv, s.Path)
	argv = append(argv, s.Args...)
	argv = append(argv, command)
	return append(argv, args...)
}

// LaunchOptions carries the child's stdio and process-group placement.
type LaunchOptions struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// NewProcessGroup places the child in its own process group so
	// signals can be delivered to the whole tree.
	NewProcessGroup bool
}

// Child is a running backend process.
type Child struct {
	cmd   *exec.Cmd
	group bool
}

// Spawn starts argv with the given environment. Backends and test doubles
// share it so every child is started and signalled the same way.
func Spawn(argv []string, env []string, options LaunchOptions) (*Child, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command line")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	// An explicit Env keeps the supervisor's environment out of
	// /proc/<pid>/environ of the backend.
	cmd.Env = env
	if cmd.Env == nil {
		cmd.Env = []string{}
	}
	cmd.Stdin = options.Stdin
	cmd.Stdout = options.Stdout
	cmd.Stderr = options.Stderr
	cmd.SysProcAttr = processAttributes(options.NewProcessGroup)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", argv[0], err)
	}
	return &Child{cmd: cmd, group: options.NewProcessGroup}, nil
}

// processAttributes makes the kernel SIGKILL the backend if the
// supervisor dies without reaping it.
func processAttributes(group bool) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: group, Pdeathsig: syscall.SIGKILL}
}

// PID returns the process id of the backend process.
func (c *Child) PID() int { return c.cmd.Process.Pid }

// Signal delivers sig to the child, or to its whole process group when it
// was started in one.
func (c *Child) Signal(sig syscall.Signal) error {
	pid := c.cmd.Process.Pid
	if c.group {
		pid = -pid
	}
	err := unix.Kill(pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

// Wait blocks until the child exits. A non-zero exit is not an error: the
// returned state carries the status.
func (c *Child) Wait() (*os.ProcessState, error) {
	err := c.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return c.cmd.ProcessState, err
	}
	return c.cmd.ProcessState, nil
}

// BackendOptions configure backend construction.
type BackendOptions struct {
	// Path overrides executable discovery.
	Path string

	Logger *slog.Logger
}

// NewBackend constructs the adapter for kind.
func NewBackend(kind BackendKind, options BackendOptions) (Backend, error) {
	switch kind {
	case Proot:
		return NewProot(options), nil
	case Bwrap:
		return NewBwrap(options), nil
	}
	return nil, fmt.Errorf("unknown backend %q", kind)
}

// locate resolves the executable for kind once and records why it is
// unavailable when it cannot be found.
func locate(kind BackendKind, name string, options BackendOptions) (string, *BackendUnavailableError) {
	if options.Path != "" {
		if isExecutable(options.Path) {
			return options.Path, nil
		}
	} else if path, err := LookupExecutable(name); err == nil {
		return path, nil
	}
	return name, &BackendUnavailableError{Backend: kind, Executable: name, Remediation: remediation(kind)}
}

// standardLocations are searched after PATH and ~/.local/bin.
var standardLocations = []string{"/usr/bin", "/usr/local/bin", "/bin"}

// LookupExecutable finds name on PATH, then in ~/.local/bin, then in the
// standard system locations.
func LookupExecutable(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		if absolute, err := filepath.Abs(path); err == nil {
			return absolute, nil
		}
		return path, nil
	}

	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", name))
	}
	for _, directory := range standardLocations {
		candidates = append(candidates, filepath.Join(directory, name))
	}
	for _, candidate := range candidates {
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found on PATH, in ~/.local/bin, or in %s",
		name, strings.Join(standardLocations, ", "))
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}

// Environment returns the guest environment for config as a map. Defaults
// come first and config.Env overrides them.
func Environment(config Config) map[string]string {
	home := os.Getenv("HOME")
	if config.Root || home == "" {
		home = "/root"
	}
	term := os.Getenv("TERM")
	if term == "" {
		term = "xterm"
	}
	env := map[string]string{
		"PATH":           GuestPath,
		"HOME":           home,
		"TERM":           term,
		"LANG":           "C.UTF-8",
		"ALPACK_SANDBOX": "1",
	}
	for key, value := range config.Env {
		env[key] = value
	}
	return env
}

// sortedKeys returns the map's keys in order, for deterministic command
// lines.
func sortedKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// environList flattens env into KEY=VALUE entries sorted by key.
func environList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for _, key := range sortedKeys(env) {
		list = append(list, key+"="+env[key])
	}
	return list
}

// ParseEnv parses KEY=VALUE assignments.
func ParseEnv(assignments []string) (map[string]string, error) {
	env := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		key, value, ok := strings.Cut(assignment, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid environment assignment %q: must be KEY=VALUE", assignment)
		}
		env[key] = value
	}
	return env, nil
}
