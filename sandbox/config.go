// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"strings"
)

// BackendKind selects a sandbox backend.
type BackendKind string

const (
	Proot BackendKind = "proot"
	Bwrap BackendKind = "bwrap"
)

// ParseBackendKind accepts the backend names used in the settings file and
// on the command line.
func ParseBackendKind(name string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "proot":
		return Proot, nil
	case "bwrap", "bubblewrap":
		return Bwrap, nil
	}
	return "", fmt.Errorf("unknown backend %q (want proot or bwrap)", name)
}

// MountKind identifies what a planned mount is.
type MountKind string

const (
	// MountRoot is the rootfs tree itself, mounted at /.
	MountRoot  MountKind = "root"
	MountBind  MountKind = "bind"
	MountProc  MountKind = "proc"
	MountDev   MountKind = "dev"
	MountTmpfs MountKind = "tmpfs"
)

// Mount is one planned entry. Source is a host path and is empty for proc,
// dev, and tmpfs. Dest is always an absolute, cleaned guest path.
type Mount struct {
	Kind     MountKind
	Source   string
	Dest     string
	ReadOnly bool

	// Baseline marks mounts every invocation gets.
	Baseline bool
}

func (m Mount) String() string {
	switch m.Kind {
	case MountBind, MountRoot:
		mode := "rw"
		if m.ReadOnly {
			mode = "ro"
		}
		return fmt.Sprintf("%s %s:%s:%s", m.Kind, m.Source, m.Dest, mode)
	default:
		return fmt.Sprintf("%s %s", m.Kind, m.Dest)
	}
}

// BindMount is a caller-declared host path exposed inside the guest.
type BindMount struct {
	Host     string
	Guest    string
	ReadOnly bool
}

// Bind modes accepted by ParseBind.
const (
	ModeRO = "ro"
	ModeRW = "rw"
)

// ParseBind parses "host[:guest][:ro|rw]". A bare host path is exposed at
// the same path in the guest. Paths containing colons are not supported.
func ParseBind(spec string) (BindMount, error) {
	parts := strings.Split(spec, ":")
	if len(parts) > 3 || parts[0] == "" {
		return BindMount{}, fmt.Errorf("invalid bind spec %q: must be host[:guest][:ro|rw]", spec)
	}

	bind := BindMount{Host: parts[0], Guest: parts[0]}
	if len(parts) >= 2 {
		if parts[1] == "" {
			return BindMount{}, fmt.Errorf("invalid bind spec %q: empty guest path", spec)
		}
		bind.Guest = parts[1]
	}
	if len(parts) == 3 {
		switch parts[2] {
		case ModeRO:
			bind.ReadOnly = true
		case ModeRW:
		default:
			return BindMount{}, fmt.Errorf("invalid bind mode %q: must be ro or rw", parts[2])
		}
	}
	return bind, nil
}

// ParseBinds parses every spec, stopping at the first invalid one.
func ParseBinds(specs []string) ([]BindMount, error) {
	binds := make([]BindMount, 0, len(specs))
	for _, spec := range specs {
		bind, err := ParseBind(spec)
		if err != nil {
			return nil, err
		}
		binds = append(binds, bind)
	}
	return binds, nil
}

func (b BindMount) String() string {
	mode := ModeRW
	if b.ReadOnly {
		mode = ModeRO
	}
	return b.Host + ":" + b.Guest + ":" + mode
}

// Config is the per-invocation sandbox configuration. It is built fresh for
// every run and never persisted.
type Config struct {
	Backend BackendKind

	// Workdir is the working directory inside the guest. Empty means the
	// host working directory when it is mounted, otherwise / (or /root when
	// Root is set).
	Workdir string

	// Cwd is the host working directory. Empty means os.Getwd.
	Cwd string

	// NoCwdMount suppresses the read-write mount of Cwd.
	NoCwdMount bool

	// PersistentBinds come from the settings file. IgnoreExtraBinds drops
	// them for this run.
	PersistentBinds  []BindMount
	IgnoreExtraBinds bool

	// Binds are declared for this invocation. They are applied after
	// PersistentBinds and so win on guest-path collisions.
	Binds []BindMount

	// Env overrides the default guest environment.
	Env map[string]string

	// NetIsolate requests a private network namespace. Only bwrap can
	// honor it; see Backend.SupportsNetworkIsolation.
	NetIsolate bool

	// Root runs the command as uid 0 inside the guest.
	Root bool
}
