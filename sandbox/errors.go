// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
)

// InvalidMountError reports a mount that cannot be planned: a guest path
// that is not absolute, or a host path that does not exist.
type InvalidMountError struct {
	Host   string
	Guest  string
	Reason string
	Err    error
}

func (err *InvalidMountError) Error() string {
	if err.Host == "" {
		return fmt.Sprintf("invalid mount at %q: %s", err.Guest, err.Reason)
	}
	return fmt.Sprintf("invalid mount %s -> %s: %s", err.Host, err.Guest, err.Reason)
}

func (err *InvalidMountError) Unwrap() error { return err.Err }

// BackendUnavailableError reports that a backend's executable is not
// installed on the host.
type BackendUnavailableError struct {
	Backend     BackendKind
	Executable  string
	Remediation string
}

func (err *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %s not found", err.Backend, err.Executable)
}

// IsBackendUnavailable reports whether err is or wraps a BackendUnavailableError.
func IsBackendUnavailable(err error) bool {
	var unavailable *BackendUnavailableError
	return errors.As(err, &unavailable)
}

func remediation(kind BackendKind) string {
	switch kind {
	case Bwrap:
		return "install bubblewrap (e.g. `apt install bubblewrap`, `dnf install bubblewrap`), " +
			"place a static bwrap in ~/.local/bin, or use --backend proot"
	default:
		return "install proot (e.g. `apt install proot`), place a static proot in ~/.local/bin, " +
			"or use --backend bwrap"
	}
}
