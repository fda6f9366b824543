// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Alive reports whether a process with the given pid exists. EPERM
// counts as alive: the process exists but belongs to another user.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// StartTime returns the start time of pid in clock ticks since boot,
// read from /proc/<pid>/stat. Two processes that reuse the same pid
// have different start times.
func StartTime(pid int) (uint64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	return parseStartTime(string(data))
}

// parseStartTime extracts field 22 (starttime) from a /proc/<pid>/stat
// line. The command name in field 2 is parenthesized and may itself
// contain spaces or parentheses, so fields are counted from the last
// closing parenthesis.
func parseStartTime(stat string) (uint64, error) {
	closing := strings.LastIndexByte(stat, ')')
	if closing < 0 {
		return 0, fmt.Errorf("malformed stat line: no command name")
	}
	fields := strings.Fields(stat[closing+1:])
	// fields[0] is field 3 (state); starttime is field 22.
	const startTimeIndex = 22 - 3
	if len(fields) <= startTimeIndex {
		return 0, fmt.Errorf("malformed stat line: %d fields after command name", len(fields))
	}
	value, err := strconv.ParseUint(fields[startTimeIndex], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing start time: %w", err)
	}
	return value, nil
}

// Matches reports whether pid is alive and, when startTime is
// non-zero, still the same process that was observed earlier.
func Matches(pid int, startTime uint64) bool {
	if !Alive(pid) {
		return false
	}
	if startTime == 0 {
		return true
	}
	current, err := StartTime(pid)
	if err != nil {
		// No procfs: fall back to existence alone.
		return errors.Is(err, os.ErrNotExist) && Alive(pid)
	}
	return current == startTime
}
