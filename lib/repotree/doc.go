// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package repotree keeps an in-memory copy of the file tree of every
// open repository.
//
// A [Cache] refreshes each repository with a conditional read of the
// full recursive tree. When the remote answers "not modified" nothing
// happens at all. Otherwise the cached tree is replaced wholesale;
// blob content already fetched is carried into the new tree for every
// entry whose path and sha are unchanged.
//
// A repository is a wiki when its name contains "wiki" or its tree
// holds the marker file (".wiki" by default). For wikis, each
// replacement that changes a markdown blob is followed by a backlink
// pass: missing markdown content is fetched with bounded parallelism
// and the backlink index is rebuilt from all pages.
//
// Refreshes run on a ticker per open repository and after each
// confirmed local write. Concurrent refreshes of one repository share
// a single remote read. Subscribers hear about every replacement.
package repotree
