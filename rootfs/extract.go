// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfs

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sys/unix"
)

// ExtractStats counts what Extract wrote.
type ExtractStats struct {
	Directories int
	Files       int
	Symlinks    int
	Hardlinks   int
	FIFOs       int
	// Skipped counts device nodes and other entries an unprivileged
	// user cannot create.
	Skipped int
}

// directoryMode is a directory's final mode and mtime, applied after
// every entry has been written so read-only directories can still be
// populated.
type directoryMode struct {
	path    string
	mode    fs.FileMode
	modTime time.Time
}

// Extract unpacks the gzip-compressed tar archive at archivePath into
// destination, which must already exist.
func Extract(archivePath, destination string) (ExtractStats, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return ExtractStats{}, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	decompressed, err := gzip.NewReader(file)
	if err != nil {
		return ExtractStats{}, fmt.Errorf("reading gzip header of %s: %w", archivePath, err)
	}
	defer decompressed.Close()

	return extractTar(tar.NewReader(decompressed), destination)
}

func extractTar(reader *tar.Reader, destination string) (ExtractStats, error) {
	var stats ExtractStats
	var directories []directoryMode

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading archive: %w", err)
		}

		name, err := cleanEntryName(header.Name)
		if err != nil {
			return stats, err
		}
		if name == "" {
			continue
		}
		target := filepath.Join(destination, filepath.FromSlash(name))
		if err := ensureParents(destination, name); err != nil {
			return stats, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := makeDirectory(target, name); err != nil {
				return stats, err
			}
			directories = append(directories, directoryMode{path: target, mode: header.FileInfo().Mode().Perm(), modTime: header.ModTime})
			stats.Directories++

		case tar.TypeReg:
			if err := writeRegular(target, name, header, reader); err != nil {
				return stats, err
			}
			stats.Files++

		case tar.TypeSymlink:
			if err := checkSymlinkTarget(name, header.Linkname); err != nil {
				return stats, err
			}
			if err := replaceWith(target, func() error { return os.Symlink(header.Linkname, target) }); err != nil {
				return stats, fmt.Errorf("creating symlink %s: %w", name, err)
			}
			modTime := unix.NsecToTimeval(header.ModTime.UnixNano())
			_ = unix.Lutimes(target, []unix.Timeval{modTime, modTime})
			stats.Symlinks++

		case tar.TypeLink:
			linkName, err := cleanEntryName(header.Linkname)
			if err != nil || linkName == "" {
				return stats, &UnsafePathError{Entry: header.Name, Reason: fmt.Sprintf("hard link target %q is outside the archive", header.Linkname)}
			}
			if err := ensureParents(destination, linkName); err != nil {
				return stats, err
			}
			source := filepath.Join(destination, filepath.FromSlash(linkName))
			if err := replaceWith(target, func() error { return os.Link(source, target) }); err != nil {
				return stats, fmt.Errorf("creating hard link %s: %w", name, err)
			}
			stats.Hardlinks++

		case tar.TypeFifo:
			if err := replaceWith(target, func() error { return unix.Mkfifo(target, uint32(header.FileInfo().Mode().Perm())) }); err != nil {
				return stats, fmt.Errorf("creating fifo %s: %w", name, err)
			}
			stats.FIFOs++

		default:
			// Device nodes need CAP_MKNOD; pax and GNU metadata
			// headers carry nothing to write.
			stats.Skipped++
		}
	}

	// Deepest first so a read-only parent does not block its children.
	// Directories stay owner-writable so the store can delete the tree.
	sort.SliceStable(directories, func(i, j int) bool {
		return len(directories[i].path) > len(directories[j].path)
	})
	for _, directory := range directories {
		if err := os.Chmod(directory.path, directory.mode|0o200); err != nil {
			return stats, fmt.Errorf("setting mode on %s: %w", directory.path, err)
		}
		_ = os.Chtimes(directory.path, directory.modTime, directory.modTime)
	}
	return stats, nil
}

// cleanEntryName validates an archive path and returns it relative to
// the archive root with a leading "./" removed. An empty result names
// the root itself.
func cleanEntryName(raw string) (string, error) {
	if raw == "" {
		return "", &UnsafePathError{Entry: raw, Reason: "empty name"}
	}
	if path.IsAbs(raw) {
		return "", &UnsafePathError{Entry: raw, Reason: "absolute path"}
	}
	for _, segment := range strings.Split(raw, "/") {
		if segment == ".." {
			return "", &UnsafePathError{Entry: raw, Reason: "contains .. segment"}
		}
	}
	cleaned := path.Clean(raw)
	if cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}

// checkSymlinkTarget rejects relative symlinks that resolve above the
// archive root. Absolute targets resolve against the sandbox root at
// run time and are left alone; they are never followed during
// extraction.
func checkSymlinkTarget(name, linkname string) error {
	if linkname == "" {
		return &UnsafePathError{Entry: name, Reason: "empty symlink target"}
	}
	if path.IsAbs(linkname) {
		return nil
	}
	resolved := path.Join(path.Dir(name), linkname)
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return &UnsafePathError{Entry: name, Reason: fmt.Sprintf("symlink target %q escapes the root", linkname)}
	}
	return nil
}

// ensureParents creates missing parent directories of name under root,
// failing if any existing parent is a symlink or not a directory.
func ensureParents(root, name string) error {
	segments := strings.Split(path.Dir(name), "/")
	current := root
	for _, segment := range segments {
		if segment == "." || segment == "" {
			continue
		}
		current = filepath.Join(current, segment)
		info, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			if err := os.Mkdir(current, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", current, err)
			}
			continue
		}
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return &UnsafePathError{Entry: name, Reason: "parent directory is a symlink"}
		}
		if !info.IsDir() {
			return &UnsafePathError{Entry: name, Reason: "parent is not a directory"}
		}
	}
	return nil
}

func makeDirectory(target, name string) error {
	info, err := os.Lstat(target)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("replacing %s with a directory: %w", name, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	// Owner-writable until the final mode pass.
	if err := os.Mkdir(target, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", name, err)
	}
	return nil
}

func writeRegular(target, name string, header *tar.Header, content io.Reader) error {
	if err := removeNonDirectory(target); err != nil {
		return err
	}
	mode := header.FileInfo().Mode().Perm()
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL|unix.O_NOFOLLOW, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if _, err := io.Copy(file, io.LimitReader(content, header.Size)); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := file.Chmod(mode); err != nil {
		file.Close()
		return fmt.Errorf("setting mode on %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	_ = os.Chtimes(target, header.ModTime, header.ModTime)
	return nil
}

// replaceWith removes any existing non-directory at target and then
// runs create.
func replaceWith(target string, create func() error) error {
	if err := removeNonDirectory(target); err != nil {
		return err
	}
	return create()
}

func removeNonDirectory(target string) error {
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s already exists as a directory", target)
	}
	return os.Remove(target)
}
