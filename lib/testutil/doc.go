// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the bounded channel waits shared by padfs
// tests. State in padfs tests is driven by a fake clock; these helpers
// are the only place a real wall-clock timeout appears, and only to
// turn a hang into a failure.
package testutil
