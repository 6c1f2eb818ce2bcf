// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for padfs.
//
// Configuration is loaded from a single file specified by either the
// PADFS_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search: a missing
// PADFS_CONFIG is an error, not a fallback to defaults.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No environment
// variable overrides a config value.
//
// Key exports:
//
//   - [Config] -- master struct with GitHub, Snippets, Repositories,
//     Mount, Metrics and Log sections
//   - [Default] -- returns a Config with every default filled in
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Duration] -- a time.Duration read from a Go duration string
//
// This package depends on no other padfs packages.
package config
