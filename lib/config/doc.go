// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML settings loading for alpack.
//
// The settings file is located by [Path]: the ALPACK_CONFIG
// environment variable when set, otherwise alpack/config.yaml under
// $XDG_CONFIG_HOME (defaulting to ~/.config). A missing file is not an
// error; [Load] returns [Default] values and the file is written on
// the first `alpack config set`.
//
// After the file is read, ${HOME} and ${VAR:-default} patterns in path
// fields are expanded. [Load] then applies the environment overrides
// ALPACK_ARCH (falling back to ARCH), ALPACK_STORE, ALPACK_CACHE and
// ALPACK_BACKEND, which take precedence over the file.
//
// Key exports:
//
//   - [Config] -- the settings struct
//   - [Default] -- defaults derived from the host and home directory
//   - [Load] and [LoadFile] -- read settings
//   - [Config.Save] and [Config.Set] -- used by `alpack config set`
//
// This package depends only on lib/atomicfile.
package config
