// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vfs defines the filesystem-provider contract that both padfs
// stores implement and that editor hosts consume.
//
// A provider addresses files by [URI]. The scheme selects the store
// ("gist" for snippet stores, "repo" for repositories); the authority
// and leading path segments select one remote container; the rest of
// the path names a file inside it. [Router] dispatches a URI to the
// provider registered for its scheme.
//
// All providers report failures through the sentinels in this package,
// usually wrapped in an [*Error] carrying the operation and URI, so
// hosts can branch with errors.Is and translate with [Errno].
package vfs
