// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Status is the outcome of one check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	}
	return "fail"
}

func (s Status) symbol() string {
	switch s {
	case StatusPass:
		return "\u2713"
	case StatusWarn:
		return "\u26a0"
	}
	return "\u2717"
}

// Check is one pre-flight result. Remedy, when set, says what to
// install or run to turn a failure into a pass.
type Check struct {
	Name    string
	Status  Status
	Message string
	Remedy  string
}

// Validator collects pre-flight checks for `alpack doctor`.
type Validator struct {
	checks   []Check
	failures int
}

// NewValidator returns an empty Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Results returns the checks in the order they ran.
func (v *Validator) Results() []Check {
	return v.checks
}

// HasErrors reports whether any check failed. Warnings do not count.
func (v *Validator) HasErrors() bool {
	return v.failures > 0
}

func (v *Validator) record(check Check) {
	if check.Status == StatusFail {
		v.failures++
	}
	v.checks = append(v.checks, check)
}

func (v *Validator) pass(name, message string) {
	v.record(Check{Name: name, Status: StatusPass, Message: message})
}

func (v *Validator) warn(name, message string) {
	v.record(Check{Name: name, Status: StatusWarn, Message: message})
}

func (v *Validator) fail(name, message, remedy string) {
	v.record(Check{Name: name, Status: StatusFail, Message: message, Remedy: remedy})
}

// ValidateBackends reports on every backend. The selected backend being
// unusable is a failure; the other one is only a warning.
func (v *Validator) ValidateBackends(caps *Capabilities, selected BackendKind) {
	for _, kind := range []BackendKind{Proot, Bwrap} {
		executable := caps.For(kind)
		reason := caps.SkipReason(kind)
		switch {
		case reason == "":
			message := "available: " + executable.Path
			if executable.Version != "" {
				message += " (" + executable.Version + ")"
			}
			v.pass(string(kind), message)
		case kind == selected:
			v.fail(string(kind), reason, remediation(kind))
		default:
			v.warn(string(kind), reason+" (optional)")
		}
	}
}

// availability is implemented by adapters that resolve their executable
// at construction time.
type availability interface {
	Available() error
}

// ValidateLauncher checks that backend, as the engine would construct it,
// found its executable. Backends that cannot report this are skipped.
func (v *Validator) ValidateLauncher(backend Backend) {
	checker, ok := backend.(availability)
	if !ok {
		return
	}
	if err := checker.Available(); err != nil {
		v.fail("launch", err.Error(), remediation(backend.Kind()))
		return
	}
	v.pass("launch", fmt.Sprintf("%s adapter ready", backend.Kind()))
}

// ValidateUserNamespaces checks that user namespaces are enabled. Only
// bwrap needs them, so a disabled sysctl fails only when bwrap is selected.
func (v *Validator) ValidateUserNamespaces(selected BackendKind) {
	data, err := os.ReadFile(userNamespaceSysctl)
	if err != nil {
		// Kernels without the sysctl do not restrict unprivileged clones.
		if errors.Is(err, fs.ErrNotExist) {
			v.pass("userns", "user namespaces supported (no clone restriction)")
			return
		}
		v.warn("userns", fmt.Sprintf("cannot check user namespace support: %v", err))
		return
	}

	if strings.TrimSpace(string(data)) == "0" {
		message := "unprivileged user namespaces are disabled"
		if selected == Bwrap {
			v.fail("userns", message, "sysctl -w kernel.unprivileged_userns_clone=1, or use the proot backend")
		} else {
			v.warn("userns", message+" (only bwrap needs them)")
		}
		return
	}

	v.pass("userns", "user namespaces enabled")
}

// ValidateWritableDirectory checks that path is, or can be created as, a
// directory the current user can write to.
func (v *Validator) ValidateWritableDirectory(name, path string) {
	if path == "" {
		v.fail(name, "directory path is required", "")
		return
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		v.fail(name, fmt.Sprintf("cannot resolve path: %v", err), "")
		return
	}

	info, err := os.Stat(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		// Walk up to the nearest existing ancestor; it is where the
		// directory will be created.
		parent := filepath.Dir(absPath)
		for parent != "/" {
			if _, err := os.Stat(parent); err == nil {
				break
			}
			parent = filepath.Dir(parent)
		}
		if !writable(parent) {
			v.fail(name, fmt.Sprintf("%s does not exist and %s is not writable", absPath, parent), "")
			return
		}
		v.pass(name, fmt.Sprintf("will be created: %s", absPath))
		return
	}
	if err != nil {
		v.fail(name, fmt.Sprintf("cannot access: %v", err), "")
		return
	}
	if !info.IsDir() {
		v.fail(name, fmt.Sprintf("not a directory: %s", absPath), "")
		return
	}
	if !writable(absPath) {
		v.fail(name, fmt.Sprintf("not writable: %s", absPath), "")
		return
	}

	v.pass(name, fmt.Sprintf("writable: %s", absPath))
}

// ValidateRootfs checks that the named instance's tree exists and looks
// like an Alpine root.
func (v *Validator) ValidateRootfs(name, path string) {
	check := "rootfs"
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			v.fail(check, fmt.Sprintf("instance %q is not set up", name), "alpack setup -R "+name)
		} else {
			v.fail(check, fmt.Sprintf("cannot access %s: %v", path, err), "")
		}
		return
	}
	if !info.IsDir() {
		v.fail(check, fmt.Sprintf("not a directory: %s", path), "")
		return
	}
	if _, err := os.Lstat(filepath.Join(path, "etc", "alpine-release")); err != nil {
		v.warn(check, fmt.Sprintf("instance %q has no etc/alpine-release", name))
		return
	}
	v.pass(check, fmt.Sprintf("instance %q at %s", name, path))
}

// writable probes by creating and removing a temporary file.
func writable(directory string) bool {
	file, err := os.CreateTemp(directory, ".alpack-probe-*")
	if err != nil {
		return false
	}
	name := file.Name()
	file.Close()
	os.Remove(name)
	return true
}

// PrintResults writes one line per check, the remedy under each failure,
// and a summary.
func (v *Validator) PrintResults(w io.Writer) {
	for _, check := range v.checks {
		fmt.Fprintf(w, "%s %s: %s\n", check.Status.symbol(), check.Name, check.Message)
		if check.Remedy != "" {
			fmt.Fprintf(w, "    fix: %s\n", check.Remedy)
		}
	}
	fmt.Fprintln(w)
	if v.failures > 0 {
		fmt.Fprintf(w, "%d check(s) failed\n", v.failures)
		return
	}
	fmt.Fprintln(w, "alpack is ready")
}
