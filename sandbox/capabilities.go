// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"os/exec"
	"strings"
)

// Executable describes one located backend binary.
type Executable struct {
	Available bool
	Path      string
	Version   string
}

// Capabilities describes what sandbox features are available on this system.
type Capabilities struct {
	Proot Executable
	Bwrap Executable

	// UserNamespacesEnabled is true if unprivileged user namespaces work.
	// Only bwrap depends on it.
	UserNamespacesEnabled bool
}

// DetectCapabilities checks which backends can run here. It executes the
// backends with version flags and, when bwrap is present, a trivial
// namespaced command.
func DetectCapabilities() *Capabilities {
	caps := &Capabilities{
		Proot: probeExecutable("proot", "--version"),
		Bwrap: probeExecutable("bwrap", "--version"),
	}
	caps.UserNamespacesEnabled = checkUserNamespaces(caps.Bwrap.Path)
	return caps
}

// For returns the executable record for kind.
func (c *Capabilities) For(kind BackendKind) Executable {
	if kind == Bwrap {
		return c.Bwrap
	}
	return c.Proot
}

// CanRun reports whether kind can run guests on this host.
func (c *Capabilities) CanRun(kind BackendKind) bool {
	return c.SkipReason(kind) == ""
}

// SkipReason returns a human-readable reason why kind cannot run, or an
// empty string if it can.
func (c *Capabilities) SkipReason(kind BackendKind) string {
	switch kind {
	case Bwrap:
		if !c.Bwrap.Available {
			return "bubblewrap not installed"
		}
		if !c.UserNamespacesEnabled {
			return "unprivileged user namespaces not enabled (set kernel.unprivileged_userns_clone=1)"
		}
	case Proot:
		if !c.Proot.Available {
			return "proot not installed"
		}
	}
	return ""
}

func probeExecutable(name, versionFlag string) Executable {
	path, err := LookupExecutable(name)
	if err != nil {
		return Executable{}
	}
	executable := Executable{Available: true, Path: path}
	if out, err := exec.Command(path, versionFlag).CombinedOutput(); err == nil {
		executable.Version = firstLine(string(out))
	}
	return executable
}

// firstLine returns the first non-empty line; proot prints a banner.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// userNamespaceSysctl is consulted before trying to create a namespace.
var userNamespaceSysctl = "/proc/sys/kernel/unprivileged_userns_clone"

// checkUserNamespaces tests if unprivileged user namespaces work.
func checkUserNamespaces(bwrapPath string) bool {
	data, err := os.ReadFile(userNamespaceSysctl)
	if err == nil && strings.TrimSpace(string(data)) == "0" {
		return false
	}
	// A missing sysctl usually means userns is allowed.

	if bwrapPath == "" {
		return false
	}
	cmd := exec.Command(bwrapPath,
		"--unshare-user",
		"--ro-bind", "/", "/",
		"--",
		"true",
	)
	return cmd.Run() == nil
}
