// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestDistance is the largest edit distance still offered as a
// "did you mean" suggestion.
const maxSuggestDistance = 3

// suggestCommand returns the command name or alias closest to unknown,
// or "".
func suggestCommand(unknown string, commands []*Command) string {
	var candidates []string
	for _, command := range commands {
		candidates = append(candidates, command.names()...)
	}
	return closest(unknown, candidates)
}

// suggestFlag returns "--name" for the flag closest to the first unknown
// long flag in args, or "".
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		if arg == "--" {
			return ""
		}
		name, ok := strings.CutPrefix(arg, "--")
		if !ok {
			continue
		}
		name, _, _ = strings.Cut(name, "=")
		if flagSet.Lookup(name) != nil {
			continue
		}
		var candidates []string
		flagSet.VisitAll(func(flag *pflag.Flag) { candidates = append(candidates, flag.Name) })
		if best := closest(name, candidates); best != "" {
			return "--" + best
		}
		return ""
	}
	return ""
}

func closest(input string, candidates []string) string {
	best, bestDistance := "", maxSuggestDistance+1
	for _, candidate := range candidates {
		if distance := editDistance(input, candidate); distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

// editDistance is the Levenshtein distance between a and b, computed
// over two rolling rows.
func editDistance(a, b string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	previous := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for column := range previous {
		previous[column] = column
	}
	for row := 1; row <= len(a); row++ {
		current[0] = row
		for column := 1; column <= len(b); column++ {
			substitution := previous[column-1]
			if a[row-1] != b[column-1] {
				substitution++
			}
			current[column] = min(previous[column]+1, current[column-1]+1, substitution)
		}
		previous, current = current, previous
	}
	return previous[len(b)]
}
