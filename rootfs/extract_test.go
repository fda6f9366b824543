// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfs

import (
	"archive/tar"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractMinimalTree(t *testing.T) {
	destination := t.TempDir()
	stats, err := Extract(writeArchive(t, minimalTree), destination)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(destination, "etc", "alpine-release"))
	if err != nil || string(data) != "3.20.3\n" {
		t.Fatalf("alpine-release = %q, %v", data, err)
	}
	link, err := os.Readlink(filepath.Join(destination, "bin", "sh"))
	if err != nil || link != "/bin/busybox" {
		t.Errorf("bin/sh -> %q, %v", link, err)
	}
	if _, err := os.Lstat(filepath.Join(destination, "dev", "null")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("device node should be skipped, Lstat err = %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
	if stats.Files != 3 || stats.Symlinks != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestExtractHardlinkAndFIFO(t *testing.T) {
	destination := t.TempDir()
	entries := []tarEntry{
		file("bin/busybox", "binary"),
		hardlink("bin/ash", "bin/busybox"),
		{name: "run/initctl", typeflag: tar.TypeFifo, mode: 0o600},
	}
	if _, err := Extract(writeArchive(t, entries), destination); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	original, err := os.Stat(filepath.Join(destination, "bin", "busybox"))
	if err != nil {
		t.Fatalf("Stat busybox: %v", err)
	}
	linked, err := os.Stat(filepath.Join(destination, "bin", "ash"))
	if err != nil {
		t.Fatalf("Stat ash: %v", err)
	}
	if !os.SameFile(original, linked) {
		t.Error("bin/ash is not a hard link to bin/busybox")
	}
	fifo, err := os.Lstat(filepath.Join(destination, "run", "initctl"))
	if err != nil {
		t.Fatalf("Lstat fifo: %v", err)
	}
	if fifo.Mode()&fs.ModeNamedPipe == 0 {
		t.Errorf("run/initctl mode = %v, want named pipe", fifo.Mode())
	}
}

func TestExtractAppliesDirectoryModesLast(t *testing.T) {
	destination := t.TempDir()
	entries := []tarEntry{
		{name: "var/empty/", typeflag: tar.TypeDir, mode: 0o555},
		file("var/empty/.keep", ""),
	}
	if _, err := Extract(writeArchive(t, entries), destination); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	info, err := os.Stat(filepath.Join(destination, "var", "empty"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("var/empty mode = %v, want 0755 (owner write kept)", info.Mode().Perm())
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{"dotdot file", []tarEntry{file("../../etc/passwd", "root::0:0")}},
		{"nested dotdot", []tarEntry{file("usr/../../outside", "x")}},
		{"absolute file", []tarEntry{file("/etc/passwd", "root::0:0")}},
		{"escaping symlink", []tarEntry{symlink("etc/evil", "../../../outside")}},
		{"hardlink outside", []tarEntry{hardlink("etc/shadow", "../../etc/shadow")}},
		{"absolute hardlink", []tarEntry{hardlink("etc/shadow", "/etc/shadow")}},
		{
			"write through symlinked directory",
			[]tarEntry{symlink("escape", "/"), file("escape/tmp/pwned", "x")},
		},
		{
			"write through relative symlinked directory",
			[]tarEntry{dir("a/"), symlink("a/b", "."), file("a/b/c", "x")},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			parent := t.TempDir()
			destination := filepath.Join(parent, "rootfs")
			if err := os.Mkdir(destination, 0o755); err != nil {
				t.Fatalf("Mkdir: %v", err)
			}

			_, err := Extract(writeArchive(t, test.entries), destination)
			var unsafe *UnsafePathError
			if !errors.As(err, &unsafe) {
				t.Fatalf("Extract error = %v, want UnsafePathError", err)
			}

			// Nothing may appear beside the destination.
			entries, err := os.ReadDir(parent)
			if err != nil {
				t.Fatalf("ReadDir: %v", err)
			}
			if len(entries) != 1 {
				t.Errorf("extraction wrote outside destination: %v", entries)
			}
		})
	}
}

func TestExtractReplacesSymlinkWithFileWithoutFollowing(t *testing.T) {
	parent := t.TempDir()
	outside := filepath.Join(parent, "outside")
	if err := os.WriteFile(outside, []byte("original"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	destination := filepath.Join(parent, "rootfs")
	if err := os.Mkdir(destination, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	entries := []tarEntry{
		symlink("config", outside),
		file("config", "replaced"),
	}
	if _, err := Extract(writeArchive(t, entries), destination); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	data, _ := os.ReadFile(outside)
	if string(data) != "original" {
		t.Errorf("file outside the tree was modified: %q", data)
	}
	data, _ = os.ReadFile(filepath.Join(destination, "config"))
	if string(data) != "replaced" {
		t.Errorf("config = %q, want replaced", data)
	}
}

func TestExtractCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tar.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Extract(path, t.TempDir()); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
}
