// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides alpack's CBOR encoding configuration.
//
// alpack writes two kinds of structured files: JSON where a human or
// another tool is expected to read the file (the rootfs pid lock, CLI
// --json output), and CBOR for files only alpack itself reads (rootfs
// metadata). Every package that writes CBOR goes through this package
// so the bytes on disk are identical for identical data.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// A failed Unmarshal returns a [DecodeError] carrying a readable dump of
// the input, so a corrupt metadata file can be reported as it is.
//
// Types that are only ever CBOR carry `cbor` struct tags. Types that
// are also printed as JSON carry `json` tags, which fxamacker/cbor
// reads as a fallback. Never put both tags on one field.
package codec
