// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/bureau-foundation/alpack/lib/clock"
	"github.com/bureau-foundation/alpack/lib/config"
	"github.com/bureau-foundation/alpack/release"
	"github.com/bureau-foundation/alpack/rootfs"
	"github.com/bureau-foundation/alpack/sandbox"
	"github.com/bureau-foundation/alpack/supervisor"
)

// Config holds the settings and collaborators of an Engine.
type Config struct {
	// Settings is the loaded settings file. Required.
	Settings *config.Config

	// HTTPClient is used for mirror requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Backends replaces backend construction for the listed kinds.
	Backends map[sandbox.BackendKind]sandbox.Backend

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Stdio of sandboxed commands. Default to the process's own.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
}

// Engine implements alpack's operations against one store.
type Engine struct {
	settings *config.Config
	fetcher  *release.Fetcher
	store    *rootfs.Store
	clock    clock.Clock
	logger   *slog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	mu       sync.Mutex
	backends map[sandbox.BackendKind]sandbox.Backend
}

// New validates the settings and constructs the fetcher and store.
func New(cfg Config) (*Engine, error) {
	if cfg.Settings == nil {
		return nil, errors.New("engine: settings are required")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		settings: cfg.Settings,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		stdin:    cfg.Stdin,
		stdout:   cfg.Stdout,
		stderr:   cfg.Stderr,
		backends: make(map[sandbox.BackendKind]sandbox.Backend),
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.stdin == nil {
		e.stdin = os.Stdin
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}
	for kind, backend := range cfg.Backends {
		e.backends[kind] = backend
	}

	var err error
	e.fetcher, err = release.NewFetcher(release.Config{
		CacheDir:   cfg.Settings.CacheDir,
		HTTPClient: cfg.HTTPClient,
		Clock:      e.clock,
		Logger:     e.logger,
	})
	if err != nil {
		return nil, err
	}
	e.store, err = rootfs.NewStore(rootfs.Config{
		Root:   cfg.Settings.StoreDir,
		Clock:  e.clock,
		Logger: e.logger,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Store returns the rootfs store.
func (e *Engine) Store() *rootfs.Store { return e.store }

// Settings returns the settings the engine was built with.
func (e *Engine) Settings() *config.Config { return e.settings }

// Release returns the release described by the settings.
func (e *Engine) Release() release.Release {
	return release.Release{
		Arch:    e.settings.Arch,
		Version: e.settings.Release,
		Mirror:  e.settings.Mirror,
	}
}

// SandboxConfig returns the base sandbox configuration from the settings:
// the configured backend and the persistent binds.
func (e *Engine) SandboxConfig() (sandbox.Config, error) {
	kind, err := sandbox.ParseBackendKind(e.settings.Backend)
	if err != nil {
		return sandbox.Config{}, err
	}
	binds, err := sandbox.ParseBinds(e.settings.Binds)
	if err != nil {
		return sandbox.Config{}, fmt.Errorf("settings binds: %w", err)
	}
	return sandbox.Config{Backend: kind, PersistentBinds: binds}, nil
}

// Backend returns the adapter for kind, constructing it on first use. An
// empty kind selects the configured backend.
func (e *Engine) Backend(kind sandbox.BackendKind) (sandbox.Backend, error) {
	if kind == "" {
		var err error
		if kind, err = sandbox.ParseBackendKind(e.settings.Backend); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if backend, ok := e.backends[kind]; ok {
		return backend, nil
	}
	backend, err := sandbox.NewBackend(kind, sandbox.BackendOptions{Logger: e.logger})
	if err != nil {
		return nil, err
	}
	e.backends[kind] = backend
	return backend, nil
}

// supervisor returns a supervisor bound to the store and the backend
// config selects.
func (e *Engine) supervisor(kind sandbox.BackendKind) (*supervisor.Supervisor, error) {
	backend, err := e.Backend(kind)
	if err != nil {
		return nil, err
	}
	return supervisor.New(supervisor.Config{
		Store:   e.store,
		Backend: backend,
		Clock:   e.clock,
		Logger:  e.logger,
	})
}

// ListInstances returns every instance in the store, sorted by name.
func (e *Engine) ListInstances() ([]rootfs.Instance, error) {
	return e.store.List()
}

// RemoveInstance deletes the named instance. It fails with
// rootfs.BusyError while a session holds it.
func (e *Engine) RemoveInstance(name string) error {
	return e.store.Remove(name)
}
