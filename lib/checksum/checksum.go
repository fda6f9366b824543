// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package checksum

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// HashFile computes the SHA-256 digest of the file at path, streaming
// the content so memory use does not depend on file size.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Writer hashes everything written through it. Wrap a download
// destination with NewWriter to hash while streaming.
type Writer struct {
	dst    io.Writer
	hasher hash.Hash
}

// NewWriter returns a Writer that forwards to dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst, hasher: sha256.New()}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.hasher.Write(p[:n])
	return n, err
}

// Sum returns the hex digest of all bytes written so far.
func (w *Writer) Sum() string {
	return hex.EncodeToString(w.hasher.Sum(nil))
}

// Normalize validates a hex digest and returns it lowercased.
func Normalize(digest string) (string, error) {
	digest = strings.ToLower(strings.TrimSpace(digest))
	decoded, err := hex.DecodeString(digest)
	if err != nil {
		return "", fmt.Errorf("parsing sha256 digest %q: %w", digest, err)
	}
	if len(decoded) != sha256.Size {
		return "", fmt.Errorf("sha256 digest is %d bytes, want %d", len(decoded), sha256.Size)
	}
	return digest, nil
}

// ParseSumFile extracts the digest for filename from sha256sum-style
// content ("<hex>  <name>" per line). A file containing a single bare
// digest is also accepted, regardless of filename.
func ParseSumFile(content []byte, filename string) (string, error) {
	var bare []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 1 {
			bare = append(bare, fields[0])
			continue
		}
		// sha256sum marks binary mode with a leading '*'.
		name := strings.TrimPrefix(fields[1], "*")
		if name == filename || pathBase(name) == filename {
			return Normalize(fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading checksum file: %w", err)
	}
	if len(bare) == 1 {
		return Normalize(bare[0])
	}
	return "", fmt.Errorf("no sha256 entry for %s", filename)
}

// Equal reports whether two hex digests name the same bytes.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func pathBase(name string) string {
	if index := strings.LastIndexByte(name, '/'); index >= 0 {
		return name[index+1:]
	}
	return name
}
