// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GistFileChange is the new value of one file in a gist update.
type GistFileChange struct {
	Content string

	// Delete removes the file; Content is ignored.
	Delete bool
}

// MarshalJSON emits null for a deletion and {"content": ...}
// otherwise, the two shapes the gist update endpoint accepts.
func (change GistFileChange) MarshalJSON() ([]byte, error) {
	if change.Delete {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Content string `json:"content"`
	}{change.Content})
}

// CreateGistRequest contains the fields for creating a gist. Every
// file needs non-empty content.
type CreateGistRequest struct {
	Description string                    `json:"description,omitempty"`
	Public      bool                      `json:"public"`
	Files       map[string]GistFileChange `json:"files"`
}

// GetGist returns a gist with its files.
func (client *Client) GetGist(ctx context.Context, id string) (*Gist, error) {
	var gist Gist
	if err := client.get(ctx, "/gists/"+url.PathEscape(id), &gist); err != nil {
		return nil, fmt.Errorf("getting gist %s: %w", id, err)
	}
	return &gist, nil
}

// CreateGist creates a gist owned by the authenticated user.
func (client *Client) CreateGist(ctx context.Context, request CreateGistRequest) (*Gist, error) {
	var gist Gist
	if err := client.write(ctx, http.MethodPost, "/gists", request, &gist); err != nil {
		return nil, fmt.Errorf("creating gist: %w", err)
	}
	return &gist, nil
}

// UpdateGist applies every change in files in one request and returns
// the updated gist.
func (client *Client) UpdateGist(ctx context.Context, id string, files map[string]GistFileChange) (*Gist, error) {
	request := struct {
		Files map[string]GistFileChange `json:"files"`
	}{Files: files}
	var gist Gist
	if err := client.write(ctx, http.MethodPatch, "/gists/"+url.PathEscape(id), request, &gist); err != nil {
		return nil, fmt.Errorf("updating %d files in gist %s: %w", len(files), id, err)
	}
	return &gist, nil
}

// GetRaw fetches the bytes behind a gist file's raw URL.
func (client *Client) GetRaw(ctx context.Context, rawURL string) ([]byte, error) {
	response, err := client.do(ctx, apiRequest{method: http.MethodGet, url: rawURL, accept: "*/*"})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	return response.body, nil
}
