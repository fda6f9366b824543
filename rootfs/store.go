// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/alpack/lib/atomicfile"
	"github.com/bureau-foundation/alpack/lib/clock"
	"github.com/bureau-foundation/alpack/lib/codec"
	"github.com/bureau-foundation/alpack/release"
)

const (
	treeDirectory = "rootfs"
	metadataFile  = "metadata.cbor"
	lockFile      = "lock"
	guardFile     = "lock.guard"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidName reports whether name can be used as an instance name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Metadata is the sidecar record stored next to each tree.
type Metadata struct {
	Name          string          `cbor:"name"`
	CreatedAt     time.Time       `cbor:"created_at"`
	LastUsed      time.Time       `cbor:"last_used"`
	Release       release.Release `cbor:"release"`
	Version       string          `cbor:"version"`
	ArchiveSHA256 string          `cbor:"archive_sha256"`
}

// Instance is a managed rootfs.
type Instance struct {
	Name string
	// Directory is <store>/<name>.
	Directory string
	// Path is the extracted tree used as the sandbox root.
	Path     string
	Metadata Metadata
	Lock     LockState
}

// Config holds configuration for a Store.
type Config struct {
	// Root is the store directory. Required.
	Root string

	// Clock provides timestamps. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// CreateOptions modify Create.
type CreateOptions struct {
	// Overwrite replaces an existing instance of the same name.
	Overwrite bool
}

// Store manages the instances under one root directory.
type Store struct {
	root   string
	clock  clock.Clock
	logger *slog.Logger

	// tokens records the lock token this Store wrote for each
	// instance it currently holds, so Unlock never removes a lock
	// another session claimed after a reclaim.
	mu     sync.Mutex
	tokens map[string]string
}

// NewStore creates a Store. The root directory is created on first
// Create.
func NewStore(config Config) (*Store, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("rootfs: store Root is required")
	}
	store := &Store{
		root:   config.Root,
		clock:  config.Clock,
		logger: config.Logger,
		tokens: make(map[string]string),
	}
	if store.clock == nil {
		store.clock = clock.Real()
	}
	if store.logger == nil {
		store.logger = slog.Default()
	}
	return store, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// directory returns <root>/<name> after validating name.
func (s *Store) directory(name string) (string, error) {
	if !ValidName(name) {
		return "", &InvalidNameError{Name: name}
	}
	return filepath.Join(s.root, name), nil
}

// existing returns the instance directory, or NotFoundError when the
// instance has no metadata.
func (s *Store) existing(name string) (string, error) {
	directory, err := s.directory(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(directory, metadataFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &NotFoundError{Name: name}
		}
		return "", err
	}
	return directory, nil
}

// Create extracts archive into a new instance called name.
func (s *Store) Create(ctx context.Context, archive release.Archive, name string, options CreateOptions) (Instance, error) {
	directory, err := s.directory(name)
	if err != nil {
		return Instance{}, err
	}
	logger := s.logger.With("instance", name)

	exists := false
	if _, err := os.Stat(directory); err == nil {
		exists = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Instance{}, err
	}
	if exists && !options.Overwrite {
		return Instance{}, &AlreadyExistsError{Name: name}
	}
	if err := ctx.Err(); err != nil {
		return Instance{}, err
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return Instance{}, fmt.Errorf("rootfs: creating store root: %w", err)
	}
	staging, err := os.MkdirTemp(s.root, "."+name+".tmp-*")
	if err != nil {
		return Instance{}, fmt.Errorf("rootfs: creating staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()
	if err := os.Chmod(staging, 0o755); err != nil {
		return Instance{}, err
	}

	tree := filepath.Join(staging, treeDirectory)
	if err := os.Mkdir(tree, 0o755); err != nil {
		return Instance{}, err
	}
	started := s.clock.Now()
	stats, err := Extract(archive.Path, tree)
	if err != nil {
		return Instance{}, fmt.Errorf("rootfs: extracting %s: %w", filepath.Base(archive.Path), err)
	}
	logger.Info("extracted archive",
		"files", stats.Files,
		"directories", stats.Directories,
		"symlinks", stats.Symlinks,
		"skipped", stats.Skipped,
		"duration", s.clock.Since(started),
	)

	now := s.clock.Now().UTC()
	metadata := Metadata{
		Name:          name,
		CreatedAt:     now,
		LastUsed:      now,
		Release:       archive.Release,
		Version:       archive.Version,
		ArchiveSHA256: archive.SHA256,
	}
	if err := writeMetadata(staging, metadata); err != nil {
		return Instance{}, err
	}

	if exists {
		if err := s.swap(name, directory, staging); err != nil {
			return Instance{}, err
		}
		logger.Info("replaced existing instance")
	} else if err := os.Rename(staging, directory); err != nil {
		// ENOTEMPTY also satisfies fs.ErrExist.
		if errors.Is(err, fs.ErrExist) {
			return Instance{}, &AlreadyExistsError{Name: name}
		}
		return Instance{}, fmt.Errorf("rootfs: moving instance into place: %w", err)
	}
	committed = true
	atomicfile.SyncDir(s.root)

	return Instance{
		Name:      name,
		Directory: directory,
		Path:      filepath.Join(directory, treeDirectory),
		Metadata:  metadata,
	}, nil
}

// swap replaces directory with staging while holding the instance
// guard. The old tree is renamed aside first and restored if the
// second rename fails.
func (s *Store) swap(name, directory, staging string) error {
	guard, err := acquireGuard(directory)
	if err != nil {
		return err
	}
	defer guard.release()

	holder, err := readLock(directory)
	if err != nil {
		return err
	}
	if holder != nil && holder.live() {
		return &BusyError{Name: name, PID: holder.PID}
	}

	trash := filepath.Join(s.root, "."+name+".trash-"+uuid.NewString())
	if err := os.Rename(directory, trash); err != nil {
		return fmt.Errorf("rootfs: moving old instance aside: %w", err)
	}
	if err := os.Rename(staging, directory); err != nil {
		if restoreErr := os.Rename(trash, directory); restoreErr != nil {
			return fmt.Errorf("rootfs: installing new instance: %w (restoring old instance also failed: %v)", err, restoreErr)
		}
		return fmt.Errorf("rootfs: installing new instance: %w", err)
	}
	if err := os.RemoveAll(trash); err != nil {
		s.logger.Warn("removing replaced instance tree failed", "path", trash, "error", err)
	}
	return nil
}

// Lookup returns the named instance.
func (s *Store) Lookup(name string) (Instance, error) {
	directory, err := s.existing(name)
	if err != nil {
		return Instance{}, err
	}
	return s.load(name, directory)
}

func (s *Store) load(name, directory string) (Instance, error) {
	metadata, err := readMetadata(directory)
	if err != nil {
		return Instance{}, err
	}
	state, err := lockState(directory)
	if err != nil {
		return Instance{}, err
	}
	return Instance{
		Name:      name,
		Directory: directory,
		Path:      filepath.Join(directory, treeDirectory),
		Metadata:  metadata,
		Lock:      state,
	}, nil
}

// List returns every instance in the store, sorted by name. Directory
// entries that are not instances are ignored.
func (s *Store) List() ([]Instance, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rootfs: reading store: %w", err)
	}

	var instances []Instance
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !ValidName(entry.Name()) {
			continue
		}
		instance, err := s.Lookup(entry.Name())
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("skipping unreadable instance", "instance", entry.Name(), "error", err)
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Touch sets the instance's last-used time to now.
func (s *Store) Touch(name string) error {
	directory, err := s.existing(name)
	if err != nil {
		return err
	}
	metadata, err := readMetadata(directory)
	if err != nil {
		return err
	}
	metadata.LastUsed = s.clock.Now().UTC()
	return writeMetadata(directory, metadata)
}

// Remove deletes the instance. It fails with BusyError while a live
// process holds the lock.
func (s *Store) Remove(name string) error {
	directory, err := s.existing(name)
	if err != nil {
		return err
	}

	guard, err := acquireGuard(directory)
	if err != nil {
		return err
	}
	holder, err := readLock(directory)
	if err != nil {
		guard.release()
		return err
	}
	if holder != nil && holder.live() {
		guard.release()
		return &BusyError{Name: name, PID: holder.PID}
	}

	trash := filepath.Join(s.root, "."+name+".trash-"+uuid.NewString())
	err = os.Rename(directory, trash)
	guard.release()
	if err != nil {
		return fmt.Errorf("rootfs: removing %s: %w", name, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		return fmt.Errorf("rootfs: deleting tree of %s: %w", name, err)
	}
	s.logger.Info("removed instance", "instance", name)
	return nil
}

// WriteFile writes data to guestPath inside the instance tree. Every
// existing component of the path must be a real directory; symlinks
// are refused so the write cannot land outside the tree.
func (s *Store) WriteFile(name, guestPath string, data []byte, mode os.FileMode) error {
	directory, err := s.existing(name)
	if err != nil {
		return err
	}
	relative, err := cleanEntryName(strings.TrimPrefix(guestPath, "/"))
	if err != nil || relative == "" {
		return &UnsafePathError{Entry: guestPath, Reason: "not a file path inside the rootfs"}
	}
	tree := filepath.Join(directory, treeDirectory)
	if err := ensureParents(tree, relative); err != nil {
		return err
	}
	target := filepath.Join(tree, filepath.FromSlash(relative))
	if info, err := os.Lstat(target); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		return &UnsafePathError{Entry: guestPath, Reason: "is a symlink"}
	}
	return atomicfile.Write(target, data, mode)
}

func readMetadata(directory string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(directory, metadataFile))
	if err != nil {
		return Metadata{}, fmt.Errorf("rootfs: reading metadata: %w", err)
	}
	var metadata Metadata
	if err := codec.Unmarshal(data, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("rootfs: decoding %s: %w", filepath.Join(directory, metadataFile), err)
	}
	return metadata, nil
}

func writeMetadata(directory string, metadata Metadata) error {
	data, err := codec.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("rootfs: encoding metadata: %w", err)
	}
	return atomicfile.Write(filepath.Join(directory, metadataFile), data, 0o644)
}
