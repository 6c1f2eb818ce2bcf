// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package github is the REST client for the two remote stores padfs
// mounts: gists, which back snippet stores, and repositories, which
// back tree-shaped stores through the git data and contents APIs.
//
// The client authenticates with a bearer token and works anonymously
// when none is set, which is enough for reading public content. It
// tracks X-RateLimit-* headers, backs off once on a rate-limited
// response, can pace itself with a client-side limiter, and maps
// non-2xx responses to [*APIError].
//
// Conditional reads are explicit: [Client.GetTree] takes the ETag from
// a previous read and returns [ErrNotModified] when nothing changed,
// so the caller decides what an unchanged tree means.
//
// All requests are made over HTTPS. The client refuses non-HTTPS base
// URLs.
package github
