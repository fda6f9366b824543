// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfs

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

// tarEntry describes one entry of a test archive.
type tarEntry struct {
	name     string
	typeflag byte
	body     string
	linkname string
	mode     int64
}

func dir(name string) tarEntry { return tarEntry{name: name, typeflag: tar.TypeDir, mode: 0o755} }

func file(name, body string) tarEntry {
	return tarEntry{name: name, typeflag: tar.TypeReg, body: body, mode: 0o644}
}

func symlink(name, target string) tarEntry {
	return tarEntry{name: name, typeflag: tar.TypeSymlink, linkname: target, mode: 0o777}
}

func hardlink(name, target string) tarEntry {
	return tarEntry{name: name, typeflag: tar.TypeLink, linkname: target, mode: 0o644}
}

// minimalTree is a small tree shaped like an Alpine minirootfs.
var minimalTree = []tarEntry{
	dir("./"),
	dir("./bin/"),
	file("./bin/busybox", "#!/bin/busybox"),
	symlink("./bin/sh", "/bin/busybox"),
	dir("./etc/"),
	dir("./etc/apk/"),
	file("./etc/apk/repositories", "https://dl-cdn.alpinelinux.org/alpine/v3.20/main\n"),
	file("./etc/alpine-release", "3.20.3\n"),
	dir("./usr/"),
	dir("./usr/bin/"),
	symlink("./usr/bin/env", "../../bin/busybox"),
	{name: "./dev/null", typeflag: tar.TypeChar, mode: 0o666},
}

// writeArchive writes entries as a .tar.gz and returns its path.
func writeArchive(t *testing.T, entries []tarEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	output, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating archive: %v", err)
	}
	compressor := gzip.NewWriter(output)
	writer := tar.NewWriter(compressor)
	modTime := time.Date(2024, 9, 6, 12, 0, 0, 0, time.UTC)
	for _, entry := range entries {
		header := &tar.Header{
			Name:     entry.name,
			Typeflag: entry.typeflag,
			Linkname: entry.linkname,
			Mode:     entry.mode,
			Size:     int64(len(entry.body)),
			ModTime:  modTime,
			Format:   tar.FormatPAX,
		}
		if entry.typeflag != tar.TypeReg {
			header.Size = 0
		}
		if err := writer.WriteHeader(header); err != nil {
			t.Fatalf("writing header %s: %v", entry.name, err)
		}
		if header.Size > 0 {
			if _, err := writer.Write([]byte(entry.body)); err != nil {
				t.Fatalf("writing body %s: %v", entry.name, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := compressor.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
	if err := output.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return path
}
