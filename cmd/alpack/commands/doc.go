// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the alpack command tree. Every subcommand loads
// the settings file (see lib/config), constructs an [engine.Engine], and
// maps the engine's typed errors onto [cli.ToolError] categories through
// [Classify].
package commands
