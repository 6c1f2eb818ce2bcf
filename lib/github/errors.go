// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrNotModified is returned by conditional reads when the remote
// object still matches the supplied ETag.
var ErrNotModified = errors.New("github: not modified")

// APIError represents a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string

	// Errors holds field-level failures on 422 responses.
	Errors []ValidationError
}

// ValidationError describes one rejected field of a request.
type ValidationError struct {
	Resource string `json:"resource"`
	Code     string `json:"code"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (err *APIError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "github: HTTP %d: %s", err.StatusCode, err.Message)
	for _, validationError := range err.Errors {
		detail := validationError.Message
		if detail == "" {
			detail = validationError.Code
		}
		fmt.Fprintf(&builder, "; %s.%s: %s", validationError.Resource, validationError.Field, detail)
	}
	return builder.String()
}

// HTTPStatus exposes the status code to callers that classify errors
// without importing this package.
func (err *APIError) HTTPStatus() int { return err.StatusCode }

// Temporary reports server-side failures and rate limiting.
func (err *APIError) Temporary() bool {
	return err.StatusCode >= 500 || err.rateLimited()
}

func (err *APIError) rateLimited() bool {
	return err.StatusCode == http.StatusTooManyRequests ||
		(err.StatusCode == http.StatusForbidden && isRateLimitMessage(err.Message))
}

func asAPIError(err error) (*APIError, bool) {
	var apiError *APIError
	ok := errors.As(err, &apiError)
	return apiError, ok
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	apiError, ok := asAPIError(err)
	return ok && apiError.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports a 401 response: a missing, expired or
// revoked token.
func IsUnauthorized(err error) bool {
	apiError, ok := asAPIError(err)
	return ok && apiError.StatusCode == http.StatusUnauthorized
}

// IsRateLimited reports a primary (403) or secondary (429) rate limit.
func IsRateLimited(err error) bool {
	apiError, ok := asAPIError(err)
	return ok && apiError.rateLimited()
}

// IsConflict reports a 409 response.
func IsConflict(err error) bool {
	apiError, ok := asAPIError(err)
	return ok && apiError.StatusCode == http.StatusConflict
}

// IsValidationFailed reports a 422 response.
func IsValidationFailed(err error) bool {
	apiError, ok := asAPIError(err)
	return ok && apiError.StatusCode == http.StatusUnprocessableEntity
}

// IsShaMismatch reports a contents update rejected because the
// supplied blob sha no longer names the file's current content. GitHub
// answers 409 when the sha is stale and 422 when a sha was required
// but missing.
func IsShaMismatch(err error) bool {
	apiError, ok := asAPIError(err)
	if !ok {
		return false
	}
	if apiError.StatusCode == http.StatusConflict {
		return true
	}
	return apiError.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(apiError.Message), "sha")
}

// IsTransient reports errors worth retrying later: transport
// failures, 5xx responses and rate limiting.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if apiError, ok := asAPIError(err); ok {
		return apiError.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// isRateLimitMessage checks whether a 403 message names a rate limit
// rather than a permission problem.
func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "abuse detection")
}

func isRateLimitResponse(response *apiResponse) bool {
	return response.status == http.StatusTooManyRequests ||
		(response.status == http.StatusForbidden && isRateLimitMessage(string(response.body)))
}
