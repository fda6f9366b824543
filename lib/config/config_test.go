// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnvironment unsets every variable Load consults so tests start
// from a known state.
func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, name := range []string{"ALPACK_CONFIG", "ALPACK_ARCH", "ARCH", "ALPACK_STORE", "ALPACK_CACHE", "ALPACK_BACKEND", "XDG_CONFIG_HOME"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Backend != "proot" {
		t.Errorf("expected backend=proot, got %s", cfg.Backend)
	}
	if cfg.Release != "latest-stable" {
		t.Errorf("expected release=latest-stable, got %s", cfg.Release)
	}
	if cfg.Mirror != DefaultMirror {
		t.Errorf("expected mirror=%s, got %s", DefaultMirror, cfg.Mirror)
	}
	if cfg.DefaultInstance != "default" {
		t.Errorf("expected default_instance=default, got %s", cfg.DefaultInstance)
	}
	if !strings.HasSuffix(cfg.StoreDir, filepath.Join(".local", "share", "alpack", "rootfs")) {
		t.Errorf("unexpected store_dir %s", cfg.StoreDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestPath(t *testing.T) {
	clearEnvironment(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := Path()
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if want := filepath.Join(home, ".config", "alpack", "config.yaml"); path != want {
		t.Errorf("Path() = %s, want %s", path, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	path, _ = Path()
	if path != "/xdg/alpack/config.yaml" {
		t.Errorf("Path() with XDG_CONFIG_HOME = %s", path)
	}

	t.Setenv("ALPACK_CONFIG", "/explicit.yaml")
	path, _ = Path()
	if path != "/explicit.yaml" {
		t.Errorf("Path() with ALPACK_CONFIG = %s", path)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	clearEnvironment(t)
	t.Setenv("ALPACK_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "proot" || cfg.Release != "latest-stable" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
backend: bwrap
release: "3.20.3"
arch: aarch64
mirror: https://mirror.example.org/alpine
store_dir: ${HOME}/instances
binds:
  - /srv/data:/data:ro
default_instance: builder
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("HOME", "/home/tester")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Backend != "bwrap" {
		t.Errorf("expected backend=bwrap, got %s", cfg.Backend)
	}
	if cfg.Release != "3.20.3" {
		t.Errorf("expected release=3.20.3, got %s", cfg.Release)
	}
	if cfg.Mirror != "https://mirror.example.org/alpine/" {
		t.Errorf("expected trailing slash on mirror, got %s", cfg.Mirror)
	}
	if cfg.StoreDir != "/home/tester/instances" {
		t.Errorf("expected expanded store_dir, got %s", cfg.StoreDir)
	}
	if len(cfg.Binds) != 1 || cfg.Binds[0] != "/srv/data:/data:ro" {
		t.Errorf("unexpected binds %v", cfg.Binds)
	}
	if cfg.DefaultInstance != "builder" {
		t.Errorf("expected default_instance=builder, got %s", cfg.DefaultInstance)
	}
	// Unset fields keep their defaults.
	if cfg.CacheDir == "" {
		t.Error("cache_dir lost its default")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("backend: [unterminated"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnvironment(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("backend: proot\narch: x86_64\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("ALPACK_CONFIG", configPath)
	t.Setenv("ARCH", "armv7")
	t.Setenv("ALPACK_BACKEND", "bwrap")
	t.Setenv("ALPACK_STORE", "/tmp/store")
	t.Setenv("ALPACK_CACHE", "/tmp/cache")

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if path != configPath {
		t.Errorf("Load path = %s, want %s", path, configPath)
	}
	if cfg.Arch != "armv7" {
		t.Errorf("ARCH override not applied: %s", cfg.Arch)
	}
	if cfg.Backend != "bwrap" || cfg.StoreDir != "/tmp/store" || cfg.CacheDir != "/tmp/cache" {
		t.Errorf("overrides not applied: %+v", cfg)
	}

	t.Setenv("ALPACK_ARCH", "aarch64")
	cfg, _, _ = Load()
	if cfg.Arch != "aarch64" {
		t.Errorf("ALPACK_ARCH should take precedence over ARCH, got %s", cfg.Arch)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"edge", func(c *Config) { c.Release = "edge" }, ""},
		{"explicit version", func(c *Config) { c.Release = "3.19.1" }, ""},
		{"bad backend", func(c *Config) { c.Backend = "docker" }, "backend"},
		{"bad release", func(c *Config) { c.Release = "stable" }, "release"},
		{"bad arch", func(c *Config) { c.Arch = "sparc" }, "architecture"},
		{"bad mirror", func(c *Config) { c.Mirror = "ftp://x/" }, "mirror"},
		{"bad instance", func(c *Config) { c.DefaultInstance = "../x" }, "default_instance"},
		{"bad bind", func(c *Config) { c.Binds = []string{"/only-host"} }, "bind"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.Arch = "x86_64"
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestSetAndSave(t *testing.T) {
	cfg := Default()
	cfg.Arch = "x86_64"

	if err := cfg.Set("backend", "bwrap"); err != nil {
		t.Fatalf("Set backend: %v", err)
	}
	if err := cfg.Set("binds", "/a:/a, /b:/b:ro"); err != nil {
		t.Fatalf("Set binds: %v", err)
	}
	if err := cfg.Set("backend", "chroot"); err == nil {
		t.Fatal("Set should reject invalid backend")
	}
	if cfg.Backend != "bwrap" {
		t.Errorf("failed Set modified config: backend=%s", cfg.Backend)
	}
	if err := cfg.Set("colour", "blue"); err == nil {
		t.Fatal("Set should reject unknown key")
	}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Backend != "bwrap" {
		t.Errorf("saved backend = %s", loaded.Backend)
	}
	if len(loaded.Binds) != 2 || loaded.Binds[1] != "/b:/b:ro" {
		t.Errorf("saved binds = %v", loaded.Binds)
	}
}

func TestKeysMatchFields(t *testing.T) {
	keys := Keys()
	if len(keys) != len(Default().Fields()) {
		t.Fatalf("Keys() has %d entries, Fields() has %d", len(keys), len(Default().Fields()))
	}
	cfg := Default()
	for _, key := range keys {
		if key == "binds" || key == "output_dir" {
			continue
		}
		err := cfg.Set(key, "")
		// Every key must be recognized; empty values may fail validation.
		if err != nil && strings.Contains(err.Error(), "unknown config key") {
			t.Errorf("key %q not handled by Set", key)
		}
	}
}
