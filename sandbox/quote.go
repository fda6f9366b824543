// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "strings"

// DryRun returns the backend command line for command as a single string a
// POSIX shell would split back into the same argv.
func DryRun(spec LaunchSpec, command string, args []string) string {
	argv := spec.Argv(command, args)
	quoted := make([]string, len(argv))
	for index, arg := range argv {
		quoted[index] = ShellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

// ShellQuote quotes arg for a POSIX shell, leaving plain words bare.
func ShellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	safe := true
	for _, r := range arg {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r)) {
			safe = false
			break
		}
	}
	if safe {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
