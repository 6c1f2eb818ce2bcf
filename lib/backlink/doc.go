// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package backlink indexes references between markdown pages of a
// wiki.
//
// A page refers to another with a page reference, "[[Other Page]]", or
// a tag, "#other-page". Titles resolve case-insensitively against each
// page's display name (its first heading), its path, or its path
// without the extension. Every resolved reference becomes a
// [vfs.BackLink] on the target that points at the span in the source.
//
// An [Index] is always built from the complete page set; there is no
// incremental update.
package backlink
