// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// UpdateFileRequest creates or replaces one file through the contents
// API. SHA must name the file's current blob when the file exists;
// GitHub rejects the write if it does not.
type UpdateFileRequest struct {
	Message string `json:"message"`

	// Content is sent base64-encoded, as encoding/json does for
	// byte slices.
	Content []byte `json:"content"`

	SHA    string `json:"sha,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// UpdateFileResponse carries the new blob and the commit that
// recorded it.
type UpdateFileResponse struct {
	Content FileContent `json:"content"`
	Commit  Commit      `json:"commit"`
}

// GetContents reads the file at path on ref. An empty ref reads the
// default branch.
func (client *Client) GetContents(ctx context.Context, owner, repo, path, ref string) (*FileContent, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}
	var content FileContent
	if err := client.get(ctx, endpoint, &content); err != nil {
		return nil, fmt.Errorf("getting %s in %s/%s: %w", path, owner, repo, err)
	}
	if content.Type != "" && content.Type != "file" {
		return nil, fmt.Errorf("getting %s in %s/%s: is a %s", path, owner, repo, content.Type)
	}
	return &content, nil
}

// PutContents creates or replaces the file at path.
func (client *Client) PutContents(ctx context.Context, owner, repo, path string, request UpdateFileRequest) (*UpdateFileResponse, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
	var response UpdateFileResponse
	if err := client.write(ctx, http.MethodPut, endpoint, request, &response); err != nil {
		return nil, fmt.Errorf("writing %s in %s/%s: %w", path, owner, repo, err)
	}
	return &response, nil
}
