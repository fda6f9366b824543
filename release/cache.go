// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/bureau-foundation/alpack/lib/checksum"
)

var cacheEntryPattern = regexp.MustCompile(`^([0-9a-f]{64})-(.+)\.tar\.gz$`)

func cacheFileName(sha256, version string) string {
	return sha256 + "-" + version + ".tar.gz"
}

// cacheDirectory is <cache>/<arch>/<tag>. The tag is the requested
// version as given, so latest-stable and 3.20.3 are cached apart.
func (f *Fetcher) cacheDirectory(rel Release) string {
	return filepath.Join(f.cacheDir, rel.Arch, rel.Version)
}

type cacheEntry struct {
	path    string
	sha256  string
	version string
	key     VersionKey
}

// lookupCache returns the newest valid cached archive for rel. Entries
// whose content does not hash to the digest in their name are removed.
func (f *Fetcher) lookupCache(rel Release) (Archive, bool, error) {
	directory := f.cacheDirectory(rel)
	entries, err := os.ReadDir(directory)
	if errors.Is(err, fs.ErrNotExist) {
		return Archive{}, false, nil
	}
	if err != nil {
		return Archive{}, false, fmt.Errorf("release: reading cache: %w", err)
	}

	var candidates []cacheEntry
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		match := cacheEntryPattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		key, _ := ParseVersionKey(match[2])
		candidates = append(candidates, cacheEntry{
			path:    filepath.Join(directory, entry.Name()),
			sha256:  match[1],
			version: match[2],
			key:     key,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].key.Compare(candidates[j].key) > 0
	})

	for _, candidate := range candidates {
		actual, err := checksum.HashFile(candidate.path)
		if err != nil {
			return Archive{}, false, fmt.Errorf("release: verifying cached archive: %w", err)
		}
		if checksum.Equal(actual, candidate.sha256) {
			return Archive{Path: candidate.path, SHA256: candidate.sha256, Version: candidate.version, Release: rel}, true, nil
		}
		f.logger.Warn("discarding corrupt cache entry", "path", candidate.path, "expected", candidate.sha256, "actual", actual)
		if err := os.Remove(candidate.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Archive{}, false, fmt.Errorf("release: removing corrupt cache entry: %w", err)
		}
	}
	return Archive{}, false, nil
}
