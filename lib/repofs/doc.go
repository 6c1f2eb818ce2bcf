// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package repofs serves git repositories as a [vfs.FileSystem].
//
// URIs have the form repo://owner/name/path?branch=branch; without a
// branch query the repository's default branch is used. Directories
// are the tree's own. Reads come from a [repotree.Cache]; single-file
// writes go through the contents API with the cached blob sha as the
// optimistic-concurrency token, and a stale sha hands the write to a
// [merge.Resolver]. Deletes and renames are committed through the git
// data API as one commit per operation, however many files a
// directory holds.
package repofs
