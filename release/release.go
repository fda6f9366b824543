// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// LatestStable tracks the newest stable Alpine branch.
	LatestStable = "latest-stable"

	// Edge tracks Alpine's development branch.
	Edge = "edge"
)

// flavor is the latest-releases.yaml flavor of the minirootfs archive.
const flavor = "alpine-minirootfs"

var explicitVersion = regexp.MustCompile(`^v?([0-9]+)\.([0-9]+)(\.[0-9]+)?([._-]?[A-Za-z0-9]+)?$`)

// Release identifies a downloadable Alpine minirootfs.
type Release struct {
	Arch    string `json:"arch"`
	Version string `json:"version"`
	Mirror  string `json:"mirror"`
}

// Validate checks that the release can be turned into URLs.
func (r Release) Validate() error {
	if r.Arch == "" {
		return fmt.Errorf("release: architecture is required")
	}
	if strings.ContainsAny(r.Arch, "/ ") {
		return fmt.Errorf("release: invalid architecture %q", r.Arch)
	}
	if r.Version != LatestStable && r.Version != Edge && !explicitVersion.MatchString(r.Version) {
		return fmt.Errorf("release: version must be %s, %s, or X.Y[.Z], got %q", LatestStable, Edge, r.Version)
	}
	if !strings.HasPrefix(r.Mirror, "http://") && !strings.HasPrefix(r.Mirror, "https://") {
		return fmt.Errorf("release: mirror must be an http(s) URL, got %q", r.Mirror)
	}
	return nil
}

// Explicit reports whether Version names a specific release rather
// than a moving branch.
func (r Release) Explicit() bool {
	return r.Version != LatestStable && r.Version != Edge
}

// Branch returns the mirror branch directory: latest-stable, edge, or
// vX.Y for an explicit version.
func (r Release) Branch() string {
	if !r.Explicit() {
		return r.Version
	}
	match := explicitVersion.FindStringSubmatch(r.Version)
	if match == nil {
		return r.Version
	}
	return "v" + match[1] + "." + match[2]
}

// version returns Version without a leading "v".
func (r Release) version() string {
	return strings.TrimPrefix(r.Version, "v")
}

func (r Release) mirror() string {
	if strings.HasSuffix(r.Mirror, "/") {
		return r.Mirror
	}
	return r.Mirror + "/"
}

// IndexURL returns the directory holding the release archives.
func (r Release) IndexURL() string {
	return fmt.Sprintf("%s%s/releases/%s/", r.mirror(), r.Branch(), r.Arch)
}

// ArchiveName returns the minirootfs file name for a resolved version.
func (r Release) ArchiveName(version string) string {
	return fmt.Sprintf("%s-%s-%s.tar.gz", flavor, version, r.Arch)
}

// Repositories returns the lines of etc/apk/repositories for this
// release: main and community, plus testing on edge.
func (r Release) Repositories() []string {
	base := r.mirror() + r.Branch()
	lines := []string{base + "/main", base + "/community"}
	if r.Version == Edge {
		lines = append(lines, base+"/testing")
	}
	return lines
}

// RepositoriesFile returns the content of etc/apk/repositories.
func (r Release) RepositoriesFile() string {
	return strings.Join(r.Repositories(), "\n") + "\n"
}

func (r Release) String() string {
	return fmt.Sprintf("alpine %s (%s)", r.Version, r.Arch)
}
