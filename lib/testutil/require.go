// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// DefaultTimeout bounds every wait in padfs tests.
const DefaultTimeout = 5 * time.Second

// RequireReceive returns the next value from ch, failing the test if
// ch is closed or nothing arrives within DefaultTimeout.
//
//	err := testutil.RequireReceive(t, future, "flush of %s", storeID)
func RequireReceive[T any](t testing.TB, ch <-chan T, what ...any) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed", describe(what))
		}
		return value
	case <-time.After(DefaultTimeout):
		t.Fatalf("%s: nothing received after %v", describe(what), DefaultTimeout)
	}
	panic("unreachable")
}

// RequireNoReceive fails the test if ch yields a value right now.
func RequireNoReceive[T any](t testing.TB, ch <-chan T, what ...any) {
	t.Helper()
	select {
	case value := <-ch:
		t.Fatalf("%s: unexpected receive %v", describe(what), value)
	default:
	}
}

// RequireClosed waits for ch to close within DefaultTimeout.
func RequireClosed(t testing.TB, ch <-chan struct{}, what ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(DefaultTimeout):
		t.Fatalf("%s: not closed after %v", describe(what), DefaultTimeout)
	}
}

func describe(what []any) string {
	switch {
	case len(what) == 0:
		return "wait"
	case len(what) == 1:
		return fmt.Sprint(what[0])
	}
	if format, ok := what[0].(string); ok {
		return fmt.Sprintf(format, what[1:]...)
	}
	return fmt.Sprint(what...)
}
