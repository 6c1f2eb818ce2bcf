// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "padfs.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.GitHub.BaseURL != "https://api.github.com" {
		t.Errorf("expected base_url=https://api.github.com, got %s", cfg.GitHub.BaseURL)
	}
	if cfg.Snippets.Debounce.Std() != 100*time.Millisecond {
		t.Errorf("expected debounce=100ms, got %v", cfg.Snippets.Debounce.Std())
	}
	if cfg.Repositories.RefreshInterval.Std() != time.Minute {
		t.Errorf("expected refresh_interval=1m, got %v", cfg.Repositories.RefreshInterval.Std())
	}
	if cfg.Repositories.WikiMarker != ".wiki" {
		t.Errorf("expected wiki_marker=.wiki, got %s", cfg.Repositories.WikiMarker)
	}
}

func TestLoad_RequiresPadfsConfig(t *testing.T) {
	t.Setenv("PADFS_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when PADFS_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "PADFS_CONFIG environment variable not set") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestLoad_WithPadfsConfig(t *testing.T) {
	t.Setenv("PADFS_CONFIG", writeConfig(t, `
snippets:
  gists: [abc123]
`))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Snippets.Gists) != 1 || cfg.Snippets.Gists[0] != "abc123" {
		t.Errorf("expected gists=[abc123], got %v", cfg.Snippets.Gists)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	configPath := writeConfig(t, `
github:
  base_url: https://github.example.com/api/v3
  token_file: ${HOME}/secrets/token
  requests_per_second: 5

snippets:
  gists: [one, two]
  debounce: 250ms

repositories:
  refresh_interval: 5m
  write_refresh_delay: 500ms
  wiki_marker: .notes
  state_file: ${PADFS_STATE:-/var/lib/padfs}/repos.cbor

mount:
  mountpoint: ${HOME}/padfs

log:
  level: debug
  format: json
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.GitHub.BaseURL != "https://github.example.com/api/v3" {
		t.Errorf("base_url = %s", cfg.GitHub.BaseURL)
	}
	if cfg.GitHub.TokenFile != "/home/tester/secrets/token" {
		t.Errorf("token_file = %s", cfg.GitHub.TokenFile)
	}
	if cfg.GitHub.Burst != 10 {
		t.Errorf("expected burst default 10 to survive, got %d", cfg.GitHub.Burst)
	}
	if cfg.Snippets.Debounce.Std() != 250*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Snippets.Debounce.Std())
	}
	if cfg.Repositories.RefreshInterval.Std() != 5*time.Minute {
		t.Errorf("refresh_interval = %v", cfg.Repositories.RefreshInterval.Std())
	}
	if cfg.Repositories.StateFile != "/var/lib/padfs/repos.cbor" {
		t.Errorf("state_file = %s", cfg.Repositories.StateFile)
	}
	if cfg.Mount.Mountpoint != "/home/tester/padfs" {
		t.Errorf("mountpoint = %s", cfg.Mount.Mountpoint)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadFile_BadDuration(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "snippets:\n  debounce: soon\n"))
	if err == nil {
		t.Fatal("expected an error for an unparsable duration")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); !os.IsNotExist(err) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("PADFS_TEST_SET", "/from/env")
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/padfs", map[string]string{"HOME": "/home/user"}, "/home/user/padfs"},
		{"${PADFS_TEST_UNSET:-/fallback}/x", nil, "/fallback/x"},
		{"${PADFS_TEST_SET:-/fallback}", nil, "/from/env"},
		{"/plain/path", nil, "/plain/path"},
		{"${PADFS_TEST_UNSET}", nil, ""},
	}
	for _, test := range tests {
		if got := expandVars(test.input, test.vars); got != test.expected {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"http base url", func(c *Config) { c.GitHub.BaseURL = "http://api.github.com" }, "github.base_url"},
		{"zero debounce", func(c *Config) { c.Snippets.Debounce = 0 }, "snippets.debounce"},
		{"duplicate gist", func(c *Config) { c.Snippets.Gists = []string{"a", "a"} }, "duplicate gist id"},
		{"nested marker", func(c *Config) { c.Repositories.WikiMarker = "docs/.wiki" }, "wiki_marker"},
		{"relative state file", func(c *Config) { c.Repositories.StateFile = "state.cbor" }, "state_file"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.Repositories.StateFile = "/var/lib/padfs/repos.cbor"
			test.modify(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("expected error containing %q, got %v", test.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsEveryError(t *testing.T) {
	cfg := Default()
	cfg.Repositories.StateFile = ""
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"state_file", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestToken(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()

	cfg.GitHub.TokenFile = filepath.Join(dir, "absent")
	if token, err := cfg.Token(); err != nil || token != "" {
		t.Errorf("missing token file = %q, %v; want anonymous", token, err)
	}

	cfg.GitHub.TokenFile = filepath.Join(dir, "token")
	if err := os.WriteFile(cfg.GitHub.TokenFile, []byte("ghp_secret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if token, err := cfg.Token(); err != nil || token != "ghp_secret" {
		t.Errorf("Token = %q, %v", token, err)
	}
}
