// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// indexEntry is one element of a mirror's latest-releases.yaml.
type indexEntry struct {
	Flavor  string `yaml:"flavor"`
	Arch    string `yaml:"arch"`
	Version string `yaml:"version"`
	Branch  string `yaml:"branch"`
	File    string `yaml:"file"`
	SHA256  string `yaml:"sha256"`
}

// artifact is a resolved archive on the mirror. SHA256 is empty until
// the checksum has been looked up.
type artifact struct {
	Version string
	File    string
	URL     string
	SHA256  string
}

// parseLatestReleases selects the minirootfs entry for arch from the
// content of latest-releases.yaml.
func parseLatestReleases(data []byte, arch string) (artifact, error) {
	var entries []indexEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return artifact{}, fmt.Errorf("parsing latest-releases.yaml: %w", err)
	}
	for _, entry := range entries {
		if entry.Flavor != flavor || entry.File == "" {
			continue
		}
		if entry.Arch != "" && entry.Arch != arch {
			continue
		}
		return artifact{Version: entry.Version, File: entry.File, SHA256: entry.SHA256}, nil
	}
	return artifact{}, fmt.Errorf("latest-releases.yaml has no %s entry for %s", flavor, arch)
}

// scanListing picks the newest minirootfs archive linked from an HTML
// directory listing.
func scanListing(data []byte, arch string) (artifact, error) {
	pattern := regexp.MustCompile(`href="(` + regexp.QuoteMeta(flavor) + `-([A-Za-z0-9._-]+)-` + regexp.QuoteMeta(arch) + `\.tar\.gz)"`)

	var best artifact
	var bestKey VersionKey
	found := false
	for _, match := range pattern.FindAllSubmatch(data, -1) {
		version := string(match[2])
		key, ok := ParseVersionKey(version)
		if !ok {
			continue
		}
		if !found || key.Compare(bestKey) > 0 {
			best = artifact{Version: version, File: string(match[1])}
			bestKey = key
			found = true
		}
	}
	if !found {
		return artifact{}, fmt.Errorf("no %s archives for %s in directory listing", flavor, arch)
	}
	return best, nil
}
