// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package release resolves, downloads, verifies and caches Alpine
// minirootfs archives.
//
// A [Release] names what to fetch: an architecture, a version tag
// ("latest-stable", "edge", or an explicit version such as 3.20.3) and
// a mirror base URL. [Fetcher.Fetch] returns an [Archive] whose file
// has been checked against the SHA-256 digest published by the mirror.
//
// The cache lives under <cache>/<arch>/<tag>/ and holds files named
// <sha256>-<version>.tar.gz. A cache hit is re-hashed before use and
// never touches the network; a file whose content no longer matches
// its name is deleted and treated as a miss. Downloads go to a
// temporary sibling and are renamed into place only after the digest
// matches, so a corrupt transfer never becomes a cache entry.
//
// Network failures are retried a bounded number of times with linear
// backoff. Only transport errors and HTTP 5xx/429 responses are
// retried; a 404 or a digest mismatch fails immediately.
package release
