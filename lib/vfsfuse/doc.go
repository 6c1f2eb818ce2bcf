// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vfsfuse mounts padfs file systems as a FUSE filesystem so
// an ordinary editor can work on remote documents.
//
// The mount has two top-level directories:
//
//   - gists/ lists the configured snippet stores. gists/<id>/ is the
//     store's directory view.
//
//   - repos/ lists the owners of open repositories. repos/<owner>/
//     lists that owner's open repositories and repos/<owner>/<name>/
//     is the repository's tree on its default branch.
//
// Every operation below the top level is forwarded to a
// [vfs.FileSystem], normally a [vfs.Router], and provider errors are
// returned as errnos through [vfs.Errno].
//
// # Write Path
//
// Opening a file for writing buffers its whole content in memory.
// The buffer is written through the provider on the first Flush,
// which the kernel sends on close(2). A Flush that fails reports the
// error to close, so an editor sees a failed save instead of silent
// data loss.
//
// # Backlinks
//
// For providers that implement [vfs.BackLinker], the extended
// attribute "user.padfs.backlinks" of a document holds its backlinks
// as a JSON array.
package vfsfuse
