// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
)

// ProotAdapter runs guests under proot's ptrace emulation.
type ProotAdapter struct {
	path    string
	missing *BackendUnavailableError
	logger  *slog.Logger
}

// NewProot locates proot and returns the adapter. A missing executable is
// reported by Launch, not here.
func NewProot(options BackendOptions) *ProotAdapter {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	path, missing := locate(Proot, "proot", options)
	return &ProotAdapter{path: path, missing: missing, logger: logger.With("backend", Proot)}
}

func (p *ProotAdapter) Kind() BackendKind { return Proot }

// SupportsNetworkIsolation is false: proot has no namespaces.
func (p *ProotAdapter) SupportsNetworkIsolation() bool { return false }

// Available returns the construction-time lookup failure, if any.
func (p *ProotAdapter) Available() error {
	if p.missing != nil {
		return p.missing
	}
	return nil
}

// Prepare builds the proot argument list. proot passes its own environment
// to the guest, so the backend process environment is the guest
// environment.
func (p *ProotAdapter) Prepare(plan Plan, config Config) (LaunchSpec, error) {
	var args, warnings []string

	for _, mount := range plan.Mounts {
		switch mount.Kind {
		case MountRoot:
			args = append(args, "-r", mount.Source)
		case MountProc, MountDev:
			// proot exposes the host's /proc and /dev through binds.
			args = append(args, "-b", mount.Dest)
		case MountTmpfs:
			// The guest uses the rootfs's own directory.
		case MountBind:
			if mount.ReadOnly && !mount.Baseline {
				warnings = append(warnings, fmt.Sprintf("proot has no read-only binds: %s is writable", mount.Dest))
			}
			if mount.Source == mount.Dest {
				args = append(args, "-b", mount.Source)
			} else {
				args = append(args, "-b", mount.Source+":"+mount.Dest)
			}
		default:
			return LaunchSpec{}, fmt.Errorf("proot cannot express mount kind %q", mount.Kind)
		}
	}

	if config.Root {
		args = append(args, "-0")
	}
	args = append(args, "-w", plan.Workdir, "--kill-on-exit")

	if config.NetIsolate {
		warnings = append(warnings, "proot cannot isolate the network: --net-isolate has no effect")
	}
	for _, warning := range warnings {
		p.logger.Warn("reduced isolation", "detail", warning)
	}

	return LaunchSpec{
		Backend:  Proot,
		Path:     p.path,
		Args:     args,
		Env:      environList(Environment(config)),
		Warnings: warnings,
	}, nil
}

// Launch starts the guest command.
func (p *ProotAdapter) Launch(ctx context.Context, spec LaunchSpec, command string, args []string, options LaunchOptions) (*Child, error) {
	if p.missing != nil {
		return nil, p.missing
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.logger.Debug("launching", "command", command, "args", args)
	return Spawn(spec.Argv(command, args), spec.Env, options)
}
