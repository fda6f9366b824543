// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/alpack/release"
	"github.com/bureau-foundation/alpack/rootfs"
)

// repositoriesPath is apk's repository list inside the guest.
const repositoriesPath = "/etc/apk/repositories"

// DevelopmentPackages are installed by a full bootstrap.
var DevelopmentPackages = []string{"alpine-sdk", "autoconf", "automake", "cmake", "go"}

// InitOptions modify InitRootfs.
type InitOptions struct {
	// Overwrite replaces an existing instance of the same name.
	Overwrite bool

	// Minimal skips installing DevelopmentPackages.
	Minimal bool

	// Refresh downloads the release again even when it is cached.
	Refresh bool

	// NoBootstrap skips every apk step after extraction.
	NoBootstrap bool
}

// InitRootfs fetches rel, extracts it as the named instance, points apk at
// the release's repositories, and bootstraps the package index. A failing
// bootstrap leaves the extracted instance in place so it can be repaired
// with the apk commands.
func (e *Engine) InitRootfs(ctx context.Context, rel release.Release, name string, options InitOptions) (rootfs.Instance, error) {
	logger := e.logger.With("instance", name, "release", rel.String())

	if !options.Overwrite {
		if _, err := e.store.Lookup(name); err == nil {
			return rootfs.Instance{}, &rootfs.AlreadyExistsError{Name: name}
		}
	}

	archive, err := e.fetcher.Fetch(ctx, rel, release.FetchOptions{Refresh: options.Refresh})
	if err != nil {
		return rootfs.Instance{}, err
	}
	instance, err := e.store.Create(ctx, archive, name, rootfs.CreateOptions{Overwrite: options.Overwrite})
	if err != nil {
		return rootfs.Instance{}, err
	}
	if err := e.store.WriteFile(name, repositoriesPath, []byte(rel.RepositoriesFile()), 0o644); err != nil {
		return instance, fmt.Errorf("writing %s: %w", repositoriesPath, err)
	}
	logger.Info("rootfs created", "version", archive.Version, "path", instance.Path)

	if options.NoBootstrap {
		return instance, nil
	}
	if err := e.apkChecked(ctx, name, "update"); err != nil {
		return instance, fmt.Errorf("bootstrapping %s: %w", name, err)
	}
	if !options.Minimal {
		if err := e.apkChecked(ctx, name, append([]string{"add"}, DevelopmentPackages...)...); err != nil {
			return instance, fmt.Errorf("bootstrapping %s: %w", name, err)
		}
	}
	logger.Info("rootfs bootstrapped", "minimal", options.Minimal)
	return e.store.Lookup(name)
}
