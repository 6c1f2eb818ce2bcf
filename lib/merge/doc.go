// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package merge reconciles a write that was made against a stale
// version of a file.
//
// The writer's edit is turned into a unified-diff patch against the
// version it started from, and the patch is replayed onto the file's
// current remote content. Every hunk must apply exactly, allowing only
// for line offsets introduced by unrelated remote edits; if any hunk
// fails nothing is written and the caller receives an error wrapping
// [vfs.ErrUnresolvableConflict]. The merge is purely textual.
package merge
