// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Stage functions an APKBUILD may define, in the order they run.
var stageFunctions = []string{"prepare", "build", "check", "package"}

// Source is one entry of the recipe's source variable.
type Source struct {
	// Name is the file name inside $srcdir.
	Name string

	// URL is empty for files shipped next to the recipe.
	URL string
}

// Remote reports whether the source has to be downloaded.
func (s Source) Remote() bool { return s.URL != "" }

// Recipe is what the APKBUILD declares. Values are read without running
// the shell: $name and ${name} references to earlier assignments are
// expanded, anything else is kept verbatim.
type Recipe struct {
	// Path is the recipe file; Dir is its directory.
	Path string
	Dir  string

	Name        string
	Version     string
	Release     string
	Description string

	Depends      []string
	MakeDepends  []string
	CheckDepends []string
	Sources      []Source

	// Functions holds the bodies of the stage functions the recipe defines.
	Functions map[string]string

	// Variables holds every top-level assignment after expansion.
	Variables map[string]string
}

// Dependencies returns the packages to install before the first stage:
// makedepends, then depends, then checkdepends, without duplicates.
func (r *Recipe) Dependencies() []string {
	seen := make(map[string]bool)
	var result []string
	for _, list := range [][]string{r.MakeDepends, r.Depends, r.CheckDepends} {
		for _, name := range list {
			// "!name" marks a conflict, not something to install.
			if strings.HasPrefix(name, "!") || seen[name] {
				continue
			}
			seen[name] = true
			result = append(result, name)
		}
	}
	return result
}

// Defines reports whether the recipe defines the named function.
func (r *Recipe) Defines(function string) bool {
	_, ok := r.Functions[function]
	return ok
}

// ParseRecipeFile reads and parses the APKBUILD at path.
func ParseRecipeFile(recipePath string) (*Recipe, error) {
	data, err := os.ReadFile(recipePath)
	if err != nil {
		return nil, fmt.Errorf("reading recipe: %w", err)
	}
	recipe, err := ParseRecipe(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", recipePath, err)
	}
	absolute, err := filepath.Abs(recipePath)
	if err != nil {
		return nil, err
	}
	recipe.Path = absolute
	recipe.Dir = filepath.Dir(absolute)
	return recipe, nil
}

var (
	functionStart = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*\(\)\s*(\{)?\s*$`)
	assignment    = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)
	reference     = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)
	packageName   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9+._-]*$`)
)

// ParseRecipe parses APKBUILD content.
func ParseRecipe(data []byte) (*Recipe, error) {
	parser := &recipeParser{
		variables: make(map[string]string),
		functions: make(map[string]string),
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		parser.lines = append(parser.lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := parser.parse(); err != nil {
		return nil, err
	}
	return parser.recipe()
}

type recipeParser struct {
	lines     []string
	position  int
	variables map[string]string
	functions map[string]string
}

func (p *recipeParser) parse() error {
	for p.position < len(p.lines) {
		raw := p.lines[p.position]
		line := strings.TrimSpace(raw)
		p.position++

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if match := functionStart.FindStringSubmatch(line); match != nil {
			body, err := p.functionBody(match[1], match[2] != "")
			if err != nil {
				return err
			}
			p.functions[match[1]] = body
			continue
		}
		// Only unindented assignments are top-level variables.
		if raw != line {
			continue
		}
		if match := assignment.FindStringSubmatch(line); match != nil {
			value, err := p.value(match[2])
			if err != nil {
				return fmt.Errorf("line %d: %s: %w", p.position, match[1], err)
			}
			p.variables[match[1]] = value
		}
	}
	return nil
}

// functionBody collects lines up to the closing brace in column zero.
func (p *recipeParser) functionBody(name string, opened bool) (string, error) {
	start := p.position
	if !opened {
		if p.position >= len(p.lines) || strings.TrimSpace(p.lines[p.position]) != "{" {
			return "", fmt.Errorf("line %d: function %s: expected {", start, name)
		}
		p.position++
	}
	var body []string
	for p.position < len(p.lines) {
		raw := p.lines[p.position]
		p.position++
		if strings.HasPrefix(raw, "}") {
			return strings.Join(body, "\n"), nil
		}
		body = append(body, raw)
	}
	return "", fmt.Errorf("line %d: function %s is not closed", start, name)
}

// value reads an assignment's right-hand side, continuing onto further
// lines while a quote is open.
func (p *recipeParser) value(first string) (string, error) {
	if first == "" {
		return "", nil
	}
	switch quote := first[0]; quote {
	case '"', '\'':
		text := first[1:]
		for {
			if end := closingQuote(text, quote); end >= 0 {
				content := text[:end]
				if quote == '\'' {
					return content, nil
				}
				return p.expand(unescape(content)), nil
			}
			if p.position >= len(p.lines) {
				return "", fmt.Errorf("unterminated %c quote", quote)
			}
			text += "\n" + p.lines[p.position]
			p.position++
		}
	default:
		word := first
		if index := strings.IndexAny(word, " \t#;"); index >= 0 {
			word = word[:index]
		}
		return p.expand(word), nil
	}
}

func closingQuote(text string, quote byte) int {
	for index := 0; index < len(text); index++ {
		if quote == '"' && text[index] == '\\' {
			index++
			continue
		}
		if text[index] == quote {
			return index
		}
	}
	return -1
}

func unescape(text string) string {
	replacer := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\$`, `$`, "\\\n", "")
	return replacer.Replace(text)
}

func (p *recipeParser) expand(text string) string {
	return reference.ReplaceAllStringFunc(text, func(ref string) string {
		match := reference.FindStringSubmatch(ref)
		name := match[1]
		if name == "" {
			name = match[2]
		}
		if value, ok := p.variables[name]; ok {
			return value
		}
		return ref
	})
}

func (p *recipeParser) recipe() (*Recipe, error) {
	recipe := &Recipe{
		Name:         p.variables["pkgname"],
		Version:      p.variables["pkgver"],
		Release:      p.variables["pkgrel"],
		Description:  p.variables["pkgdesc"],
		Depends:      strings.Fields(p.variables["depends"]),
		MakeDepends:  strings.Fields(p.variables["makedepends"]),
		CheckDepends: strings.Fields(p.variables["checkdepends"]),
		Functions:    make(map[string]string),
		Variables:    p.variables,
	}
	if recipe.Name == "" {
		return nil, fmt.Errorf("recipe does not set pkgname")
	}
	if !packageName.MatchString(recipe.Name) {
		return nil, fmt.Errorf("invalid pkgname %q", recipe.Name)
	}
	if recipe.Version == "" {
		return nil, fmt.Errorf("recipe does not set pkgver")
	}
	if recipe.Release == "" {
		recipe.Release = "0"
	}
	for _, function := range stageFunctions {
		if body, ok := p.functions[function]; ok {
			recipe.Functions[function] = body
		}
	}
	for _, entry := range strings.Fields(p.variables["source"]) {
		recipe.Sources = append(recipe.Sources, parseSource(entry))
	}
	return recipe, nil
}

// parseSource handles "name::url", bare URLs, and local file names.
func parseSource(entry string) Source {
	if name, url, ok := strings.Cut(entry, "::"); ok {
		return Source{Name: name, URL: url}
	}
	if strings.Contains(entry, "://") {
		return Source{Name: path.Base(entry), URL: entry}
	}
	return Source{Name: entry}
}
