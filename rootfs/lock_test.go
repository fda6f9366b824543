// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

func createDefault(t *testing.T, store *Store) {
	t.Helper()
	if _, err := store.Create(context.Background(), testArchive(t, minimalTree), "default", CreateOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestLockExclusiveUntilHolderExits(t *testing.T) {
	store, _ := newTestStore(t)
	createDefault(t, store)

	holder := exec.Command("sleep", "60")
	if err := holder.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	t.Cleanup(func() {
		holder.Process.Kill()
		holder.Wait()
	})

	if err := store.Lock("default", holder.Process.Pid); err != nil {
		t.Fatalf("Lock for holder: %v", err)
	}

	// A second store models a separate alpack invocation.
	other, err := NewStore(Config{Root: store.Root(), Logger: store.logger})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	err = other.Lock("default", os.Getpid())
	var busy *BusyError
	if !errors.As(err, &busy) || busy.PID != holder.Process.Pid {
		t.Fatalf("second Lock = %v, want BusyError for pid %d", err, holder.Process.Pid)
	}

	instance, err := other.Lookup("default")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !instance.Lock.Held || instance.Lock.PID != holder.Process.Pid {
		t.Errorf("Lock state = %+v", instance.Lock)
	}

	holder.Process.Kill()
	holder.Wait()

	instance, _ = other.Lookup("default")
	if instance.Lock.Held || !instance.Lock.Stale {
		t.Errorf("lock state after holder exit = %+v, want stale", instance.Lock)
	}
	if err := other.Lock("default", os.Getpid()); err != nil {
		t.Fatalf("Lock after holder exit: %v", err)
	}
	if err := other.Unlock("default"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "default", lockFile)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file remains after Unlock: %v", err)
	}
}

func TestLockConcurrentCallersOneWins(t *testing.T) {
	store, _ := newTestStore(t)
	createDefault(t, store)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			contender, err := NewStore(Config{Root: store.Root(), Logger: store.logger})
			if err != nil {
				results <- err
				return
			}
			results <- contender.Lock("default", os.Getpid())
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		var busy *BusyError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &busy):
		default:
			t.Errorf("unexpected Lock error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d concurrent Lock calls succeeded, want exactly 1", succeeded)
	}
}

func TestUnlockRefusesReclaimedLock(t *testing.T) {
	store, _ := newTestStore(t)
	createDefault(t, store)

	holder := exec.Command("sleep", "60")
	if err := holder.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	if err := store.Lock("default", holder.Process.Pid); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	holder.Process.Kill()
	holder.Wait()

	other, _ := NewStore(Config{Root: store.Root(), Logger: store.logger})
	if err := other.Lock("default", os.Getpid()); err != nil {
		t.Fatalf("reclaiming Lock: %v", err)
	}
	if err := store.Unlock("default"); err == nil {
		t.Fatal("Unlock by the original store should fail after reclaim")
	}
	instance, _ := other.Lookup("default")
	if !instance.Lock.Held {
		t.Error("reclaimed lock was removed by the stale owner")
	}
	other.Unlock("default")
}

func TestUnlockWithoutLock(t *testing.T) {
	store, _ := newTestStore(t)
	createDefault(t, store)
	if err := store.Unlock("default"); err == nil {
		t.Fatal("Unlock without Lock should fail")
	}
}

func TestLockCorruptFileIsStale(t *testing.T) {
	store, _ := newTestStore(t)
	createDefault(t, store)
	if err := os.WriteFile(filepath.Join(store.Root(), "default", lockFile), []byte("{garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := store.Lock("default", os.Getpid()); err != nil {
		t.Fatalf("Lock over corrupt lock file: %v", err)
	}
	store.Unlock("default")
}

func TestLockMissingInstance(t *testing.T) {
	store, _ := newTestStore(t)
	var notFound *NotFoundError
	if err := store.Lock("absent", os.Getpid()); !errors.As(err, &notFound) {
		t.Fatalf("Lock = %v, want NotFoundError", err)
	}
}
