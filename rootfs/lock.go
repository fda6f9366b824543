// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/alpack/lib/atomicfile"
	"github.com/bureau-foundation/alpack/lib/process"
)

// LockState describes the lock file of an instance at the time it was
// read.
type LockState struct {
	// Held is true when a live process holds the lock.
	Held bool
	// Stale is true when a lock file exists but its holder is gone.
	Stale      bool
	PID        int
	AcquiredAt time.Time
}

// lockRecord is the JSON content of the lock file.
type lockRecord struct {
	PID        int       `json:"pid"`
	StartTime  uint64    `json:"start_time,omitempty"`
	Token      string    `json:"token"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func (record *lockRecord) live() bool {
	return process.Matches(record.PID, record.StartTime)
}

// guard is an exclusive flock on an instance's lock.guard file.
type guard struct {
	file *os.File
}

func acquireGuard(directory string) (*guard, error) {
	file, err := os.OpenFile(filepath.Join(directory, guardFile), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rootfs: opening lock guard: %w", err)
	}
	for {
		err = unix.Flock(int(file.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("rootfs: locking guard: %w", err)
	}
	return &guard{file: file}, nil
}

func (g *guard) release() {
	_ = unix.Flock(int(g.file.Fd()), unix.LOCK_UN)
	g.file.Close()
}

// readLock returns the recorded holder, or nil when there is no lock
// file. An unparseable lock file is returned as a record with no pid,
// which is never live.
func readLock(directory string) (*lockRecord, error) {
	data, err := os.ReadFile(filepath.Join(directory, lockFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rootfs: reading lock: %w", err)
	}
	var record lockRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return &lockRecord{}, nil
	}
	return &record, nil
}

func lockState(directory string) (LockState, error) {
	record, err := readLock(directory)
	if err != nil || record == nil {
		return LockState{}, err
	}
	state := LockState{PID: record.PID, AcquiredAt: record.AcquiredAt}
	if record.live() {
		state.Held = true
	} else {
		state.Stale = true
	}
	return state, nil
}

// Lock records pid as the holder of the instance lock. It fails with
// BusyError if a live process already holds it; a lock left by a dead
// process is reclaimed.
func (s *Store) Lock(name string, pid int) error {
	directory, err := s.existing(name)
	if err != nil {
		return err
	}
	guard, err := acquireGuard(directory)
	if err != nil {
		return err
	}
	defer guard.release()

	holder, err := readLock(directory)
	if err != nil {
		return err
	}
	if holder != nil {
		if holder.live() {
			return &BusyError{Name: name, PID: holder.PID}
		}
		s.logger.Info("reclaiming stale lock", "instance", name, "stale_pid", holder.PID, "acquired_at", holder.AcquiredAt)
	}

	startTime, _ := process.StartTime(pid)
	record := lockRecord{
		PID:        pid,
		StartTime:  startTime,
		Token:      uuid.NewString(),
		AcquiredAt: s.clock.Now().UTC(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("rootfs: encoding lock: %w", err)
	}
	data = append(data, '\n')
	if err := atomicfile.Write(filepath.Join(directory, lockFile), data, 0o644); err != nil {
		return err
	}

	s.mu.Lock()
	s.tokens[name] = record.Token
	s.mu.Unlock()
	return nil
}

// Unlock releases a lock taken through this Store. It refuses to
// remove a lock that another session has since claimed.
func (s *Store) Unlock(name string) error {
	s.mu.Lock()
	token, ok := s.tokens[name]
	delete(s.tokens, name)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("rootfs: %q is not locked by this process", name)
	}

	directory, err := s.directory(name)
	if err != nil {
		return err
	}
	guard, err := acquireGuard(directory)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer guard.release()

	holder, err := readLock(directory)
	if err != nil || holder == nil {
		return err
	}
	if holder.Token != token {
		return fmt.Errorf("rootfs: lock on %q now belongs to pid %d", name, holder.PID)
	}
	if err := os.Remove(filepath.Join(directory, lockFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("rootfs: removing lock: %w", err)
	}
	return nil
}
