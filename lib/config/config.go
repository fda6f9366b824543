// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/alpack/lib/atomicfile"
)

// DefaultMirror is the Alpine CDN used when no mirror is configured.
const DefaultMirror = "https://dl-cdn.alpinelinux.org/alpine/"

// Config is the alpack settings file.
type Config struct {
	// Backend selects the sandbox backend: "proot" or "bwrap".
	// Default: proot
	Backend string `yaml:"backend"`

	// Release is the Alpine release used by `alpack setup`:
	// "latest-stable", "edge", or an explicit version such as 3.20.3.
	// Default: latest-stable
	Release string `yaml:"release"`

	// Arch is the Alpine architecture name (x86_64, aarch64, ...).
	// Default: derived from the host
	Arch string `yaml:"arch"`

	// Mirror is the base URL of an Alpine mirror, ending in a slash.
	Mirror string `yaml:"mirror"`

	// StoreDir holds one subdirectory per rootfs instance.
	// Default: ~/.local/share/alpack/rootfs
	StoreDir string `yaml:"store_dir"`

	// CacheDir holds verified release archives.
	// Default: ~/.cache/alpack
	CacheDir string `yaml:"cache_dir"`

	// OutputDir is where build artifacts are copied. Empty means the
	// recipe directory's pkg/ subdirectory.
	OutputDir string `yaml:"output_dir,omitempty"`

	// Binds are extra bind mounts added to every run, in
	// host:guest[:ro|rw] form.
	Binds []string `yaml:"binds,omitempty"`

	// DefaultInstance is the rootfs used when -R is not given.
	// Default: default
	DefaultInstance string `yaml:"default_instance"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Backend:         "proot",
		Release:         "latest-stable",
		Arch:            HostArch(),
		Mirror:          DefaultMirror,
		StoreDir:        filepath.Join(homeDir, ".local", "share", "alpack", "rootfs"),
		CacheDir:        filepath.Join(homeDir, ".cache", "alpack"),
		DefaultInstance: "default",
	}
}

// alpineArch maps GOARCH values onto Alpine's architecture names.
var alpineArch = map[string]string{
	"amd64":   "x86_64",
	"386":     "x86",
	"arm64":   "aarch64",
	"arm":     "armv7",
	"ppc64le": "ppc64le",
	"s390x":   "s390x",
	"riscv64": "riscv64",
	"loong64": "loongarch64",
}

// HostArch returns the Alpine architecture name for the running host.
func HostArch() string {
	if arch, ok := alpineArch[runtime.GOARCH]; ok {
		return arch
	}
	return runtime.GOARCH
}

func knownArch(arch string) bool {
	if arch == "armhf" {
		return true
	}
	for _, known := range alpineArch {
		if known == arch {
			return true
		}
	}
	return false
}

// Path returns the settings file location.
func Path() (string, error) {
	if path := os.Getenv("ALPACK_CONFIG"); path != "" {
		return path, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating config directory: %w", err)
		}
		base = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(base, "alpack", "config.yaml"), nil
}

// Load reads the settings file at [Path] and applies environment
// overrides. A missing file yields the defaults.
func Load() (*Config, string, error) {
	path, err := Path()
	if err != nil {
		return nil, "", err
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.expandVariables()
	} else if err != nil {
		return nil, path, err
	}
	cfg.ApplyEnvironment()
	return cfg, path, nil
}

// LoadFile loads configuration from a specific file path. Environment
// overrides are not applied; the result reflects the file alone.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// ApplyEnvironment applies the ALPACK_* environment overrides.
func (c *Config) ApplyEnvironment() {
	if arch := os.Getenv("ALPACK_ARCH"); arch != "" {
		c.Arch = arch
	} else if arch := os.Getenv("ARCH"); arch != "" {
		c.Arch = arch
	}
	if store := os.Getenv("ALPACK_STORE"); store != "" {
		c.StoreDir = store
	}
	if cache := os.Getenv("ALPACK_CACHE"); cache != "" {
		c.CacheDir = cache
	}
	if backend := os.Getenv("ALPACK_BACKEND"); backend != "" {
		c.Backend = backend
	}
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return atomicfile.Write(path, data, 0644)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.StoreDir = expandVars(c.StoreDir, vars)
	c.CacheDir = expandVars(c.CacheDir, vars)
	c.OutputDir = expandVars(c.OutputDir, vars)
	for i, bind := range c.Binds {
		c.Binds[i] = expandVars(bind, vars)
	}
	if c.Mirror != "" && !strings.HasSuffix(c.Mirror, "/") {
		c.Mirror += "/"
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	releasePattern  = regexp.MustCompile(`^(latest-stable|edge|v?[0-9]+\.[0-9]+(\.[0-9]+)?([._-][A-Za-z0-9]+)?)$`)
	instancePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Backend != "proot" && c.Backend != "bwrap" {
		errs = append(errs, fmt.Errorf("backend must be proot or bwrap, got %q", c.Backend))
	}
	if !releasePattern.MatchString(c.Release) {
		errs = append(errs, fmt.Errorf("release must be latest-stable, edge, or a version like 3.20.3, got %q", c.Release))
	}
	if !knownArch(c.Arch) {
		errs = append(errs, fmt.Errorf("unknown architecture %q", c.Arch))
	}
	if !strings.HasPrefix(c.Mirror, "http://") && !strings.HasPrefix(c.Mirror, "https://") {
		errs = append(errs, fmt.Errorf("mirror must be an http(s) URL, got %q", c.Mirror))
	}
	if c.StoreDir == "" {
		errs = append(errs, fmt.Errorf("store_dir is required"))
	}
	if c.CacheDir == "" {
		errs = append(errs, fmt.Errorf("cache_dir is required"))
	}
	if !instancePattern.MatchString(c.DefaultInstance) {
		errs = append(errs, fmt.Errorf("default_instance %q is not a valid instance name", c.DefaultInstance))
	}
	for _, bind := range c.Binds {
		if !strings.Contains(bind, ":") {
			errs = append(errs, fmt.Errorf("bind %q must be host:guest[:ro|rw]", bind))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Fields returns the settings as ordered key/value pairs for display.
// Binds are joined with commas.
func (c *Config) Fields() [][2]string {
	return [][2]string{
		{"backend", c.Backend},
		{"release", c.Release},
		{"arch", c.Arch},
		{"mirror", c.Mirror},
		{"store_dir", c.StoreDir},
		{"cache_dir", c.CacheDir},
		{"output_dir", c.OutputDir},
		{"binds", strings.Join(c.Binds, ",")},
		{"default_instance", c.DefaultInstance},
	}
}

// Keys returns the settable key names, sorted.
func Keys() []string {
	keys := make([]string, 0, 9)
	for _, field := range Default().Fields() {
		keys = append(keys, field[0])
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to the named key and validates the result. For
// binds, the value is a comma-separated list; an empty value clears it.
func (c *Config) Set(key, value string) error {
	updated := *c
	updated.Binds = append([]string(nil), c.Binds...)

	switch key {
	case "backend":
		updated.Backend = value
	case "release":
		updated.Release = value
	case "arch":
		updated.Arch = value
	case "mirror":
		if value != "" && !strings.HasSuffix(value, "/") {
			value += "/"
		}
		updated.Mirror = value
	case "store_dir":
		updated.StoreDir = value
	case "cache_dir":
		updated.CacheDir = value
	case "output_dir":
		updated.OutputDir = value
	case "binds":
		updated.Binds = nil
		for _, bind := range strings.Split(value, ",") {
			if bind = strings.TrimSpace(bind); bind != "" {
				updated.Binds = append(updated.Binds, bind)
			}
		}
	case "default_instance":
		updated.DefaultInstance = value
	default:
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}

	if err := updated.Validate(); err != nil {
		return err
	}
	*c = updated
	return nil
}
