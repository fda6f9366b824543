// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"regexp"
	"strconv"
)

// VersionKey orders Alpine release versions such as 3.20.3 and
// 3.21.0_rc1.
type VersionKey struct {
	Major, Minor, Patch int
	Suffix              string
}

var (
	versionPattern  = regexp.MustCompile(`^([0-9]+)\.([0-9]+)\.([0-9]+)(?:[_-]?([A-Za-z0-9]+))?$`)
	snapshotPattern = regexp.MustCompile(`^[0-9]{8}$`)
)

// ParseVersionKey parses version. It returns false for strings that
// are neither X.Y.Z with an optional suffix nor an edge snapshot date
// (YYYYMMDD), which orders by its Major field alone.
func ParseVersionKey(version string) (VersionKey, bool) {
	if snapshotPattern.MatchString(version) {
		date, err := strconv.Atoi(version)
		if err != nil {
			return VersionKey{}, false
		}
		return VersionKey{Major: date}, true
	}
	match := versionPattern.FindStringSubmatch(version)
	if match == nil {
		return VersionKey{}, false
	}
	major, err1 := strconv.Atoi(match[1])
	minor, err2 := strconv.Atoi(match[2])
	patch, err3 := strconv.Atoi(match[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return VersionKey{}, false
	}
	return VersionKey{Major: major, Minor: minor, Patch: patch, Suffix: match[4]}, true
}

// Compare returns -1, 0 or +1. A version without a suffix is a final
// release and sorts after its pre-releases (3.21.0_rc1 < 3.21.0).
func (k VersionKey) Compare(other VersionKey) int {
	for _, pair := range [][2]int{{k.Major, other.Major}, {k.Minor, other.Minor}, {k.Patch, other.Patch}} {
		if pair[0] < pair[1] {
			return -1
		}
		if pair[0] > pair[1] {
			return 1
		}
	}
	switch {
	case k.Suffix == other.Suffix:
		return 0
	case k.Suffix == "":
		return 1
	case other.Suffix == "":
		return -1
	case k.Suffix < other.Suffix:
		return -1
	default:
		return 1
	}
}
