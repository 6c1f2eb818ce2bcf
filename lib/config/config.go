// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for padfs.
type Config struct {
	// GitHub configures the remote API client.
	GitHub GitHubConfig `yaml:"github"`

	// Snippets configures the gist-backed file system.
	Snippets SnippetsConfig `yaml:"snippets"`

	// Repositories configures the repository tree cache.
	Repositories RepositoriesConfig `yaml:"repositories"`

	// Mount configures the FUSE mount.
	Mount MountConfig `yaml:"mount"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`
}

// GitHubConfig configures the API client.
type GitHubConfig struct {
	// BaseURL is the REST API root. Must be https.
	// Default: https://api.github.com
	BaseURL string `yaml:"base_url"`

	// TokenFile holds a personal access token. A missing file means
	// anonymous access: reads work, mutations fail.
	// Default: ${HOME}/.config/padfs/token
	TokenFile string `yaml:"token_file"`

	// RequestsPerSecond caps the client-side request rate. Zero
	// disables the limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the limiter's burst size.
	// Default: 10
	Burst int `yaml:"burst"`
}

// SnippetsConfig configures the snippet store.
type SnippetsConfig struct {
	// Gists lists the gist ids mounted under gists/.
	Gists []string `yaml:"gists"`

	// Debounce is the write coalescing window.
	// Default: 100ms
	Debounce Duration `yaml:"debounce"`
}

// RepositoriesConfig configures the repository store.
type RepositoriesConfig struct {
	// RefreshInterval is the period of the background tree refresh.
	// Default: 1m
	RefreshInterval Duration `yaml:"refresh_interval"`

	// WriteRefreshDelay is how long after a write the tree is re-read.
	// Default: 2s
	WriteRefreshDelay Duration `yaml:"write_refresh_delay"`

	// WikiMarker is the file that marks a repository as a wiki.
	// Default: .wiki
	WikiMarker string `yaml:"wiki_marker"`

	// FetchLimit bounds parallel page fetches while indexing a wiki.
	// Default: 8
	FetchLimit int `yaml:"fetch_limit"`

	// StateFile records the managed repositories reopened at start.
	// Default: ${HOME}/.local/state/padfs/repositories.cbor
	StateFile string `yaml:"state_file"`
}

// MountConfig configures the FUSE mount.
type MountConfig struct {
	// Mountpoint is where the file systems appear. Required for
	// "padfs mount" unless given on the command line.
	Mountpoint string `yaml:"mountpoint"`

	// AllowOther lets other users see the mount (needs
	// user_allow_other in /etc/fuse.conf).
	AllowOther bool `yaml:"allow_other"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Address is the listen address for /metrics. Empty disables it.
	Address string `yaml:"address"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text
	Format string `yaml:"format"`
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// UnmarshalYAML parses strings such as "250ms" or "1m30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", value.Line, err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			BaseURL:   "https://api.github.com",
			TokenFile: "${HOME}/.config/padfs/token",
			Burst:     10,
		},
		Snippets: SnippetsConfig{
			Debounce: Duration(100 * time.Millisecond),
		},
		Repositories: RepositoriesConfig{
			RefreshInterval:   Duration(time.Minute),
			WriteRefreshDelay: Duration(2 * time.Second),
			WikiMarker:        ".wiki",
			FetchLimit:        8,
			StateFile:         "${HOME}/.local/state/padfs/repositories.cbor",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the PADFS_CONFIG environment variable.
//
// There are no fallbacks: if PADFS_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("PADFS_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PADFS_CONFIG environment variable not set; " +
			"set it to the path of your padfs.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Values not
// present in the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.GitHub.TokenFile = expandVars(c.GitHub.TokenFile, vars)
	c.Repositories.StateFile = expandVars(c.Repositories.StateFile, vars)
	c.Mount.Mountpoint = expandVars(c.Mount.Mountpoint, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
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

		// Provided vars first, then the environment.
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
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the configuration for errors. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if parsed, err := url.Parse(c.GitHub.BaseURL); err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("github.base_url must be an https URL, got %q", c.GitHub.BaseURL))
	}
	if c.GitHub.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("github.requests_per_second must not be negative"))
	}
	if c.GitHub.Burst < 1 {
		errs = append(errs, fmt.Errorf("github.burst must be at least 1"))
	}

	if c.Snippets.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("snippets.debounce must be positive"))
	}
	seen := make(map[string]bool)
	for _, id := range c.Snippets.Gists {
		switch {
		case id == "" || strings.ContainsAny(id, "/ "):
			errs = append(errs, fmt.Errorf("snippets.gists: invalid gist id %q", id))
		case seen[id]:
			errs = append(errs, fmt.Errorf("snippets.gists: duplicate gist id %q", id))
		}
		seen[id] = true
	}

	if c.Repositories.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("repositories.refresh_interval must be positive"))
	}
	if c.Repositories.WriteRefreshDelay <= 0 {
		errs = append(errs, fmt.Errorf("repositories.write_refresh_delay must be positive"))
	}
	if c.Repositories.WikiMarker == "" || strings.Contains(c.Repositories.WikiMarker, "/") {
		errs = append(errs, fmt.Errorf("repositories.wiki_marker must be a file name at the repository root"))
	}
	if c.Repositories.FetchLimit < 1 {
		errs = append(errs, fmt.Errorf("repositories.fetch_limit must be at least 1"))
	}
	if c.Repositories.StateFile == "" || !filepath.IsAbs(c.Repositories.StateFile) {
		errs = append(errs, fmt.Errorf("repositories.state_file must be an absolute path"))
	}

	if !contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Token reads the access token. A missing token file returns an empty
// token and no error.
func (c *Config) Token() (string, error) {
	if c.GitHub.TokenFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.GitHub.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
