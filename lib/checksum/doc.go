// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package checksum computes and parses SHA-256 digests for downloaded
// archives. Digests are handled as lowercase 64-character hex strings,
// the form Alpine publishes in its .sha256 sidecar files and
// latest-releases.yaml index.
package checksum
