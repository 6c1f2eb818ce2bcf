// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		notFound     bool
		shaStale     bool
		transient    bool
		rateLimit    bool
		unauthorized bool
	}{
		{name: "404", err: &APIError{StatusCode: 404, Message: "Not Found"}, notFound: true},
		{name: "409", err: &APIError{StatusCode: 409, Message: "does not match"}, shaStale: true},
		{name: "422 sha", err: &APIError{StatusCode: 422, Message: `Invalid request. "sha" wasn't supplied.`}, shaStale: true},
		{name: "422 other", err: &APIError{StatusCode: 422, Message: "Validation Failed"}},
		{name: "403 rate", err: &APIError{StatusCode: 403, Message: "API rate limit exceeded"}, transient: true, rateLimit: true},
		{name: "403 perms", err: &APIError{StatusCode: 403, Message: "Resource not accessible"}},
		{name: "401", err: &APIError{StatusCode: 401, Message: "Bad credentials"}, unauthorized: true},
		{name: "502 wrapped", err: fmt.Errorf("getting tree: %w", &APIError{StatusCode: 502}), transient: true},
		{name: "network", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, transient: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsNotFound(test.err); got != test.notFound {
				t.Errorf("IsNotFound = %v", got)
			}
			if got := IsShaMismatch(test.err); got != test.shaStale {
				t.Errorf("IsShaMismatch = %v", got)
			}
			if got := IsTransient(test.err); got != test.transient {
				t.Errorf("IsTransient = %v", got)
			}
			if got := IsRateLimited(test.err); got != test.rateLimit {
				t.Errorf("IsRateLimited = %v", got)
			}
			if got := IsUnauthorized(test.err); got != test.unauthorized {
				t.Errorf("IsUnauthorized = %v", got)
			}
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{
		StatusCode: 422,
		Message:    "Validation Failed",
		Errors:     []ValidationError{{Resource: "Gist", Field: "files", Code: "missing_field"}},
	}
	want := "github: HTTP 422: Validation Failed; Gist.files: missing_field"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestParseAPIErrorFromBody(t *testing.T) {
	parsed := parseAPIErrorFromBody(404, []byte(`{"message":"Not Found","documentation_url":"https://docs"}`))
	if parsed.Message != "Not Found" || parsed.DocumentationURL != "https://docs" {
		t.Errorf("parsed = %+v", parsed)
	}
	plain := parseAPIErrorFromBody(502, []byte("bad gateway"))
	if plain.Message != "bad gateway" {
		t.Errorf("plain = %+v", plain)
	}
}
