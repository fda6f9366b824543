// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfs

import "fmt"

// AlreadyExistsError is returned by Create when the name is taken and
// overwrite was not requested.
type AlreadyExistsError struct {
	Name string
}

func (err *AlreadyExistsError) Error() string {
	return fmt.Sprintf("rootfs %q already exists (use --overwrite to replace it)", err.Name)
}

// NotFoundError is returned for operations on an instance that does
// not exist.
type NotFoundError struct {
	Name string
}

func (err *NotFoundError) Error() string {
	return fmt.Sprintf("rootfs %q not found", err.Name)
}

// BusyError is returned when a live process holds the instance lock.
type BusyError struct {
	Name string
	PID  int
}

func (err *BusyError) Error() string {
	return fmt.Sprintf("rootfs %q is in use by pid %d", err.Name, err.PID)
}

// UnsafePathError is returned when an archive entry would be written
// outside the instance tree or through a symlink.
type UnsafePathError struct {
	Entry  string
	Reason string
}

func (err *UnsafePathError) Error() string {
	return fmt.Sprintf("unsafe archive entry %q: %s", err.Entry, err.Reason)
}

// InvalidNameError is returned for instance names that are not a
// single safe path component.
type InvalidNameError struct {
	Name string
}

func (err *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid rootfs name %q: must match [A-Za-z0-9][A-Za-z0-9._-]* and be at most 64 characters", err.Name)
}
