// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// hostResolvConf is exposed read-only in the guest when it exists so DNS
// works without touching the rootfs copy.
var hostResolvConf = "/etc/resolv.conf"

// Plan is the ordered, deduplicated mount list for one invocation.
type Plan struct {
	Rootfs  string
	Workdir string
	Mounts  []Mount
}

// Lookup returns the mount planned at the given guest path.
func (p Plan) Lookup(guest string) (Mount, bool) {
	guest = filepath.Clean(guest)
	for _, mount := range p.Mounts {
		if mount.Dest == guest {
			return mount, true
		}
	}
	return Mount{}, false
}

// PlanMounts computes the mounts for running in the rootfs at rootfsPath.
// The baseline (rootfs, /proc, /dev, /sys, resolv.conf, /tmp) comes first,
// then the working directory, then persistent and per-invocation binds.
// Entries sharing a guest path resolve to the last one declared. The
// result is ordered parent-first so no mount is hidden by a later
// ancestor.
func PlanMounts(rootfsPath string, config Config) (Plan, error) {
	info, err := os.Stat(rootfsPath)
	if err != nil {
		return Plan{}, &InvalidMountError{Host: rootfsPath, Guest: "/", Reason: "rootfs not accessible", Err: err}
	}
	if !info.IsDir() {
		return Plan{}, &InvalidMountError{Host: rootfsPath, Guest: "/", Reason: "rootfs is not a directory"}
	}
	root, err := filepath.Abs(rootfsPath)
	if err != nil {
		return Plan{}, fmt.Errorf("resolving rootfs path: %w", err)
	}

	cwd := config.Cwd
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			return Plan{}, fmt.Errorf("determining working directory: %w", err)
		}
	}
	if cwd, err = filepath.Abs(cwd); err != nil {
		return Plan{}, fmt.Errorf("resolving working directory: %w", err)
	}

	mounts := []Mount{
		{Kind: MountRoot, Source: root, Dest: "/", Baseline: true},
		{Kind: MountProc, Dest: "/proc", Baseline: true},
		{Kind: MountDev, Dest: "/dev", Baseline: true},
		{Kind: MountBind, Source: "/sys", Dest: "/sys", ReadOnly: true, Baseline: true},
	}
	if _, err := os.Stat(hostResolvConf); err == nil {
		mounts = append(mounts, Mount{Kind: MountBind, Source: hostResolvConf, Dest: "/etc/resolv.conf", ReadOnly: true, Baseline: true})
	}
	mounts = append(mounts, Mount{Kind: MountTmpfs, Dest: "/tmp", Baseline: true})

	cwdMounted := false
	if !config.NoCwdMount && cwd != "/" {
		mount, err := bindMount(BindMount{Host: cwd, Guest: cwd}, cwd)
		if err != nil {
			return Plan{}, err
		}
		mounts = append(mounts, mount)
		cwdMounted = true
	}

	var declared []BindMount
	if !config.IgnoreExtraBinds {
		declared = append(declared, config.PersistentBinds...)
	}
	declared = append(declared, config.Binds...)
	for _, bind := range declared {
		mount, err := bindMount(bind, cwd)
		if err != nil {
			return Plan{}, err
		}
		mounts = append(mounts, mount)
	}

	workdir := config.Workdir
	switch {
	case workdir != "":
		if !filepath.IsAbs(workdir) {
			return Plan{}, fmt.Errorf("guest working directory %q must be absolute", workdir)
		}
		workdir = filepath.Clean(workdir)
	case cwdMounted:
		workdir = cwd
	case config.Root:
		workdir = "/root"
	default:
		workdir = "/"
	}

	return Plan{Rootfs: root, Workdir: workdir, Mounts: parentFirst(lastWins(mounts))}, nil
}

// bindMount validates one declared bind. Relative host paths resolve
// against cwd.
func bindMount(bind BindMount, cwd string) (Mount, error) {
	if !filepath.IsAbs(bind.Guest) {
		return Mount{}, &InvalidMountError{Host: bind.Host, Guest: bind.Guest, Reason: "guest path must be absolute"}
	}
	guest := filepath.Clean(bind.Guest)
	if guest == "/" {
		return Mount{}, &InvalidMountError{Host: bind.Host, Guest: guest, Reason: "guest / is reserved for the rootfs"}
	}

	host := bind.Host
	if !filepath.IsAbs(host) {
		host = filepath.Join(cwd, host)
	}
	host = filepath.Clean(host)
	if _, err := os.Stat(host); err != nil {
		reason := "host path not accessible"
		if errors.Is(err, fs.ErrNotExist) {
			reason = "host path does not exist"
		}
		return Mount{}, &InvalidMountError{Host: host, Guest: guest, Reason: reason, Err: err}
	}

	return Mount{Kind: MountBind, Source: host, Dest: guest, ReadOnly: bind.ReadOnly}, nil
}

// lastWins drops every mount whose guest path is declared again later,
// keeping the survivors in their original order.
func lastWins(mounts []Mount) []Mount {
	last := make(map[string]int, len(mounts))
	for index, mount := range mounts {
		last[mount.Dest] = index
	}
	result := make([]Mount, 0, len(last))
	for index, mount := range mounts {
		if last[mount.Dest] == index {
			result = append(result, mount)
		}
	}
	return result
}

// parentFirst orders mounts by guest path depth, keeping declaration
// order among equal depths. The rootfs at / has depth zero and stays
// first.
func parentFirst(mounts []Mount) []Mount {
	slices.SortStableFunc(mounts, func(a, b Mount) int {
		return depth(a.Dest) - depth(b.Dest)
	})
	return mounts
}

func depth(guest string) int {
	if guest == "/" {
		return 0
	}
	return strings.Count(guest, "/")
}
