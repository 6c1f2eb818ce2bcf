// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/padfs/lib/clock"
)

// githubAPIVersion pins the REST API version header.
const githubAPIVersion = "2022-11-28"

// defaultBaseURL is the base URL for the public GitHub API.
const defaultBaseURL = "https://api.github.com"

// maxResponseBytes bounds how much of a response body is read. Blobs
// larger than this are not editable through padfs anyway.
const maxResponseBytes = 64 << 20

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the root URL for API requests. Defaults to
	// "https://api.github.com". Must use HTTPS.
	BaseURL string

	// Token is a personal access or OAuth token. Empty means
	// anonymous; SetToken can sign in later.
	Token string

	// RequestsPerSecond paces outgoing requests when positive. Bursts
	// up to Burst requests are allowed (default 1).
	RequestsPerSecond float64
	Burst             int

	// HTTPClient is used for all HTTP requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Clock drives rate-limit backoff. Defaults to clock.Real().
	Clock clock.Clock

	// UserAgent is sent with every request. Defaults to "padfs".
	UserAgent string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a typed GitHub REST API client.
type Client struct {
	baseURL    string
	baseHost   string
	httpClient *http.Client
	limiter    *rate.Limiter
	rateLimit  *rateLimitTracker
	clock      clock.Clock
	userAgent  string
	logger     *slog.Logger

	tokenMu sync.RWMutex
	token   string
}

// NewClient creates a client from config. It fails for a non-HTTPS
// base URL.
func NewClient(config Config) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: API client requires HTTPS (got %q)", baseURL)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("github: parsing base URL: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "padfs"
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    baseURL,
		baseHost:   parsed.Host,
		httpClient: httpClient,
		limiter:    limiter,
		rateLimit:  newRateLimitTracker(clk),
		clock:      clk,
		userAgent:  userAgent,
		logger:     logger,
		token:      config.Token,
	}, nil
}

// SetToken replaces the bearer token. An empty token signs out.
func (client *Client) SetToken(token string) {
	client.tokenMu.Lock()
	defer client.tokenMu.Unlock()
	client.token = token
}

// SignedIn reports whether a token is configured.
func (client *Client) SignedIn() bool {
	client.tokenMu.RLock()
	defer client.tokenMu.RUnlock()
	return client.token != ""
}

func (client *Client) authorization() string {
	client.tokenMu.RLock()
	defer client.tokenMu.RUnlock()
	if client.token == "" {
		return ""
	}
	return "Bearer " + client.token
}

// apiRequest describes one call. url is absolute; body, when non-nil,
// is JSON-encoded.
type apiRequest struct {
	method string
	url    string
	body   any

	// ifNoneMatch makes a GET conditional.
	ifNoneMatch string

	// accept overrides the default media type.
	accept string
}

type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

// do executes request, retrying once after a rate-limit backoff.
// A 304 is returned as a response, not an error; every other non-2xx
// status becomes an *APIError.
func (client *Client) do(ctx context.Context, request apiRequest) (*apiResponse, error) {
	response, err := client.send(ctx, request)
	if err != nil {
		return nil, err
	}
	if response.status >= 400 && isRateLimitResponse(response) {
		backoff := client.rateLimit.retryAfter(response.header)
		if backoff > 0 {
			client.logger.Info("rate limited, backing off",
				"duration", backoff,
				"method", request.method,
				"url", request.url,
			)
			if err := sleep(ctx, client.clock, backoff); err != nil {
				return nil, err
			}
			response, err = client.send(ctx, request)
			if err != nil {
				return nil, err
			}
		}
	}
	if response.status == http.StatusNotModified || (response.status >= 200 && response.status < 300) {
		return response, nil
	}
	return nil, parseAPIErrorFromBody(response.status, response.body)
}

// send performs one HTTP round trip and reads the whole body.
func (client *Client) send(ctx context.Context, request apiRequest) (*apiResponse, error) {
	if err := client.rateLimit.wait(ctx); err != nil {
		return nil, err
	}
	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var bodyReader io.Reader
	if request.body != nil {
		encoded, err := json.Marshal(request.body)
		if err != nil {
			return nil, fmt.Errorf("github: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, request.method, request.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}
	// Tokens go only to the API host, never to raw content hosts.
	if httpRequest.URL.Host == client.baseHost {
		if authorization := client.authorization(); authorization != "" {
			httpRequest.Header.Set("Authorization", authorization)
		}
	}
	accept := request.accept
	if accept == "" {
		accept = "application/vnd.github+json"
	}
	httpRequest.Header.Set("Accept", accept)
	httpRequest.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	httpRequest.Header.Set("User-Agent", client.userAgent)
	if request.body != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	if request.ifNoneMatch != "" {
		httpRequest.Header.Set("If-None-Match", request.ifNoneMatch)
	}

	response, err := client.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("github: %s %s: %w", request.method, request.url, err)
	}
	defer response.Body.Close()
	client.rateLimit.update(response.Header)

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("github: reading response body: %w", err)
	}
	return &apiResponse{status: response.StatusCode, header: response.Header, body: body}, nil
}

// get decodes a GET response into result.
func (client *Client) get(ctx context.Context, path string, result any) error {
	response, err := client.do(ctx, apiRequest{method: http.MethodGet, url: client.baseURL + path})
	if err != nil {
		return err
	}
	return json.Unmarshal(response.body, result)
}

// write sends requestBody with method and decodes any response into
// result.
func (client *Client) write(ctx context.Context, method, path string, requestBody, result any) error {
	response, err := client.do(ctx, apiRequest{method: method, url: client.baseURL + path, body: requestBody})
	if err != nil {
		return err
	}
	if result == nil || len(response.body) == 0 {
		return nil
	}
	return json.Unmarshal(response.body, result)
}

// escapePath escapes each segment of a slash-separated path.
func escapePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

// parseAPIErrorFromBody parses a GitHub API error from a status code
// and response body.
func parseAPIErrorFromBody(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Message          string            `json:"message"`
		DocumentationURL string            `json:"documentation_url"`
		Errors           []ValidationError `json:"errors"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Message = wireError.Message
		apiError.DocumentationURL = wireError.DocumentationURL
		apiError.Errors = wireError.Errors
	} else {
		apiError.Message = string(body)
	}
	return apiError
}
