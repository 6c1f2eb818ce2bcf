// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package writequeue coalesces bursts of file mutations into one
// remote batch per store.
//
// Every [Queue.Submit] re-arms a debounce timer. Once the queue has
// been quiet for the configured window, everything buffered is taken
// in one piece, grouped by store id, and collapsed so each filename
// keeps only its latest value: new content, or a tombstone for a
// delete. Each group becomes one [Batch] handed to the [Flusher].
//
// Groups for the same store are flushed one at a time in the order
// their windows closed, so a slow store never sees two overlapping
// updates. Groups for different stores run independently: a failure
// in one store reaches only that store's callers. Every submitted
// operation's future resolves with the result of the batch that
// carried it, and never before that batch's call has returned.
package writequeue
