// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
)

// BwrapAdapter runs guests with bubblewrap.
type BwrapAdapter struct {
	path    string
	missing *BackendUnavailableError
	logger  *slog.Logger
}

// NewBwrap locates bwrap and returns the adapter. A missing executable is
// reported by Launch, not here.
func NewBwrap(options BackendOptions) *BwrapAdapter {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	path, missing := locate(Bwrap, "bwrap", options)
	return &BwrapAdapter{path: path, missing: missing, logger: logger.With("backend", Bwrap)}
}

func (b *BwrapAdapter) Kind() BackendKind { return Bwrap }

func (b *BwrapAdapter) SupportsNetworkIsolation() bool { return true }

// Available returns the construction-time lookup failure, if any.
func (b *BwrapAdapter) Available() error {
	if b.missing != nil {
		return b.missing
	}
	return nil
}

// Prepare builds the bwrap argument list: mounts in plan order, namespace
// flags, the guest working directory, and a cleared environment rebuilt
// with sorted --setenv pairs. The list ends with "--".
func (b *BwrapAdapter) Prepare(plan Plan, config Config) (LaunchSpec, error) {
	builder := newBwrapBuilder()
	if err := builder.addMounts(plan.Mounts); err != nil {
		return LaunchSpec{}, err
	}

	// Mounting a fresh /proc requires owning the pid namespace.
	builder.add("--unshare-pid")
	if config.NetIsolate {
		builder.add("--unshare-net")
	}
	if config.Root {
		builder.add("--unshare-user", "--uid", "0", "--gid", "0")
	}
	builder.add("--die-with-parent")
	builder.add("--chdir", plan.Workdir)

	// --cap-drop ALL and PR_SET_NO_NEW_PRIVS are always applied by bwrap
	// when running unprivileged.
	builder.add("--clearenv")
	env := Environment(config)
	for _, key := range sortedKeys(env) {
		builder.add("--setenv", key, env[key])
	}
	builder.add("--")

	return LaunchSpec{
		Backend: Bwrap,
		Path:    b.path,
		Args:    builder.args,
		// bwrap itself only needs PATH to exec and TERM for the terminal.
		// The guest gets its environment through --setenv.
		Env: []string{
			"PATH=/usr/local/bin:/usr/bin:/bin",
			"TERM=" + env["TERM"],
		},
	}, nil
}

// Launch starts the guest command.
func (b *BwrapAdapter) Launch(ctx context.Context, spec LaunchSpec, command string, args []string, options LaunchOptions) (*Child, error) {
	if b.missing != nil {
		return nil, b.missing
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.logger.Debug("launching", "command", command, "args", args)
	return Spawn(spec.Argv(command, args), spec.Env, options)
}

// bwrapBuilder accumulates bubblewrap command-line arguments.
type bwrapBuilder struct {
	args []string
}

func newBwrapBuilder() *bwrapBuilder {
	return &bwrapBuilder{args: []string{}}
}

func (b *bwrapBuilder) add(args ...string) {
	b.args = append(b.args, args...)
}

// addMounts translates each planned mount. The rootfs must come first so
// later mounts land on top of it.
func (b *bwrapBuilder) addMounts(mounts []Mount) error {
	for _, mount := range mounts {
		switch mount.Kind {
		case MountRoot:
			b.add("--bind", mount.Source, "/")
		case MountProc:
			b.add("--proc", mount.Dest)
		case MountDev:
			b.add("--dev", mount.Dest)
		case MountTmpfs:
			b.add("--tmpfs", mount.Dest)
		case MountBind:
			if mount.ReadOnly {
				b.add("--ro-bind", mount.Source, mount.Dest)
			} else {
				b.add("--bind", mount.Source, mount.Dest)
			}
		default:
			return fmt.Errorf("bwrap cannot express mount kind %q", mount.Kind)
		}
	}
	return nil
}
