// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/alpack/lib/clock"
	"github.com/bureau-foundation/alpack/release"
)

func newTestStore(t *testing.T) (*Store, *clock.SteppingClock) {
	t.Helper()
	stepping := clock.Stepping(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store, err := NewStore(Config{
		Root:   filepath.Join(t.TempDir(), "store"),
		Clock:  stepping,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, stepping
}

func testArchive(t *testing.T, entries []tarEntry) release.Archive {
	t.Helper()
	return release.Archive{
		Path:    writeArchive(t, entries),
		SHA256:  strings.Repeat("a", 64),
		Version: "3.20.3",
		Release: release.Release{Arch: "x86_64", Version: "3.20.3", Mirror: "https://dl-cdn.alpinelinux.org/alpine/"},
	}
}

func TestCreateThenLookup(t *testing.T) {
	store, _ := newTestStore(t)
	created, err := store.Create(context.Background(), testArchive(t, minimalTree), "default", CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := store.Lookup("default")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found.Path != created.Path {
		t.Errorf("Lookup path = %s, Create path = %s", found.Path, created.Path)
	}
	if _, err := os.Stat(filepath.Join(found.Path, "bin", "busybox")); err != nil {
		t.Errorf("tree not populated: %v", err)
	}
	if found.Metadata.Version != "3.20.3" || found.Metadata.Release.Arch != "x86_64" {
		t.Errorf("metadata = %+v", found.Metadata)
	}
	if !found.Metadata.CreatedAt.Equal(found.Metadata.LastUsed) {
		t.Errorf("fresh instance CreatedAt %v != LastUsed %v", found.Metadata.CreatedAt, found.Metadata.LastUsed)
	}
	if found.Lock.Held || found.Lock.Stale {
		t.Errorf("fresh instance lock = %+v", found.Lock)
	}

	// No staging directories remain.
	entries, _ := os.ReadDir(store.Root())
	if len(entries) != 1 || entries[0].Name() != "default" {
		t.Errorf("store root contains %v", entries)
	}
}

func TestCreateRejectsExistingName(t *testing.T) {
	store, _ := newTestStore(t)
	archive := testArchive(t, minimalTree)
	if _, err := store.Create(context.Background(), archive, "default", CreateOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := store.Create(context.Background(), archive, "default", CreateOptions{})
	var exists *AlreadyExistsError
	if !errors.As(err, &exists) || exists.Name != "default" {
		t.Fatalf("second Create error = %v, want AlreadyExistsError", err)
	}
}

func TestCreateOverwriteReplacesTree(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Create(context.Background(), testArchive(t, minimalTree), "default", CreateOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	replacement := []tarEntry{file("etc/alpine-release", "3.21.0\n")}
	instance, err := store.Create(context.Background(), testArchive(t, replacement), "default", CreateOptions{Overwrite: true})
	if err != nil {
		t.Fatalf("overwrite Create: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(instance.Path, "etc", "alpine-release"))
	if string(data) != "3.21.0\n" {
		t.Errorf("alpine-release = %q after overwrite", data)
	}
	if _, err := os.Lstat(filepath.Join(instance.Path, "bin", "busybox")); !errors.Is(err, os.ErrNotExist) {
		t.Error("old tree content survived overwrite")
	}
	entries, _ := os.ReadDir(store.Root())
	if len(entries) != 1 {
		t.Errorf("store root contains leftovers: %v", entries)
	}
}

func TestCreateFailedExtractionKeepsOldInstance(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Create(context.Background(), testArchive(t, minimalTree), "default", CreateOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	hostile := []tarEntry{file("etc/ok", "fine"), file("../../etc/passwd", "x")}
	_, err := store.Create(context.Background(), testArchive(t, hostile), "default", CreateOptions{Overwrite: true})
	var unsafe *UnsafePathError
	if !errors.As(err, &unsafe) {
		t.Fatalf("Create error = %v, want UnsafePathError", err)
	}

	instance, err := store.Lookup("default")
	if err != nil {
		t.Fatalf("Lookup after failed overwrite: %v", err)
	}
	if _, err := os.Stat(filepath.Join(instance.Path, "bin", "busybox")); err != nil {
		t.Errorf("old tree damaged by failed overwrite: %v", err)
	}
	entries, _ := os.ReadDir(store.Root())
	if len(entries) != 1 {
		t.Errorf("staging directory left behind: %v", entries)
	}
}

func TestCreateOverwriteBusy(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Create(context.Background(), testArchive(t, minimalTree), "default", CreateOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Lock("default", os.Getpid()); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer store.Unlock("default")

	_, err := store.Create(context.Background(), testArchive(t, minimalTree), "default", CreateOptions{Overwrite: true})
	var busy *BusyError
	if !errors.As(err, &busy) {
		t.Fatalf("overwrite while locked = %v, want BusyError", err)
	}
}

func TestInvalidNames(t *testing.T) {
	store, _ := newTestStore(t)
	for _, name := range []string{"", "../escape", "a/b", ".hidden", "-flag", strings.Repeat("x", 65)} {
		_, err := store.Lookup(name)
		var invalid *InvalidNameError
		if !errors.As(err, &invalid) {
			t.Errorf("Lookup(%q) = %v, want InvalidNameError", name, err)
		}
	}
	for _, name := range []string{"default", "edge-3.21", "Builder_2"} {
		if !ValidName(name) {
			t.Errorf("ValidName(%q) = false", name)
		}
	}
}

func TestLookupMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Lookup("absent")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Lookup = %v, want NotFoundError", err)
	}
}

func TestListSortedAndTouch(t *testing.T) {
	store, stepping := newTestStore(t)
	archive := testArchive(t, minimalTree)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := store.Create(context.Background(), archive, name, CreateOptions{}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	// A stray staging directory is not an instance.
	if err := os.Mkdir(filepath.Join(store.Root(), ".zeta.tmp-123"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	instances, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, instance := range instances {
		names = append(names, instance.Name)
	}
	if strings.Join(names, ",") != "alpha,mid,zeta" {
		t.Errorf("List names = %v", names)
	}

	before := instances[0].Metadata.LastUsed
	stepping.Advance(time.Hour)
	if err := store.Touch("alpha"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	touched, _ := store.Lookup("alpha")
	if got := touched.Metadata.LastUsed.Sub(before); got != time.Hour {
		t.Errorf("LastUsed advanced by %v, want 1h", got)
	}
	if !touched.Metadata.CreatedAt.Equal(before) {
		t.Error("Touch changed CreatedAt")
	}
}

func TestListEmptyStore(t *testing.T) {
	store, _ := newTestStore(t)
	instances, err := store.List()
	if err != nil || len(instances) != 0 {
		t.Fatalf("List on missing root = %v, %v", instances, err)
	}
}

func TestRemove(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Create(context.Background(), testArchive(t, minimalTree), "default", CreateOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Lock("default", os.Getpid()); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	var busy *BusyError
	if err := store.Remove("default"); !errors.As(err, &busy) {
		t.Fatalf("Remove while locked = %v, want BusyError", err)
	}
	if err := store.Unlock("default"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := store.Remove("default"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	var notFound *NotFoundError
	if _, err := store.Lookup("default"); !errors.As(err, &notFound) {
		t.Errorf("Lookup after Remove = %v", err)
	}
	entries, _ := os.ReadDir(store.Root())
	if len(entries) != 0 {
		t.Errorf("store root not empty after Remove: %v", entries)
	}
}

func TestWriteFile(t *testing.T) {
	store, _ := newTestStore(t)
	instance, err := store.Create(context.Background(), testArchive(t, append(minimalTree, symlink("etc/motd", "/etc/issue"), symlink("var", "/"))), "default", CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.WriteFile("default", "/etc/apk/repositories", []byte("https://m/edge/main\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(instance.Path, "etc", "apk", "repositories"))
	if string(data) != "https://m/edge/main\n" {
		t.Errorf("repositories = %q", data)
	}

	var unsafe *UnsafePathError
	if err := store.WriteFile("default", "/etc/motd", []byte("x"), 0o644); !errors.As(err, &unsafe) {
		t.Errorf("WriteFile through symlink = %v, want UnsafePathError", err)
	}
	if err := store.WriteFile("default", "/var/log/x", []byte("x"), 0o644); !errors.As(err, &unsafe) {
		t.Errorf("WriteFile under symlinked dir = %v, want UnsafePathError", err)
	}
	if err := store.WriteFile("default", "/../outside", []byte("x"), 0o644); !errors.As(err, &unsafe) {
		t.Errorf("WriteFile traversal = %v, want UnsafePathError", err)
	}
}
