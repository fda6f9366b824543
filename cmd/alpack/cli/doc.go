// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command-line framework behind the alpack binary.
//
// A [Command] tree is assembled in cmd/alpack/commands and run with
// [Command.Execute], which routes subcommands and aliases, parses flags
// bound from tagged params structs by [FlagsFromParams], and prints help
// with examples. An unknown command or flag gets a "did you mean"
// suggestion when a known name is within three edits.
//
// Commands fail with a [ToolError] whose category tells scripts what kind
// of failure happened. An [ExitError] carries a sandboxed command's own
// exit status out of main without an extra error line.
package cli
