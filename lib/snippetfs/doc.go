// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snippetfs presents gists as directory trees.
//
// A gist holds a flat set of filenames. Directories one level deep are
// emulated by storing "dir/name" under the key "dir---name" (see
// package pathcodec) and recovered by prefix scans over the cached
// file list. Deeper paths are refused.
//
// Gists cannot hold an empty file, so empty text content is stored as
// a single zero-width space and translated back on read. Files whose
// extension marks them as binary are always fetched from their raw URL
// and never pass through that translation.
//
// Writes and deletes go through a [writequeue.Queue]; the file system
// itself is the queue's flusher, sending each batch as one gist update
// and adopting the gist the remote returns.
package snippetfs
