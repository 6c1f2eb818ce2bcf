// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the scheduling seam for everything in padfs that
// waits: the write queue's debounce gate, the per-repository refresh
// loop, and the delayed refresh after a confirmed write.
//
// Production code takes a [Clock] and uses [Real]. Tests use [Fake],
// which only moves when [FakeClock.Advance] is called, so a debounce
// window can be closed at an exact instant without sleeping.
package clock
