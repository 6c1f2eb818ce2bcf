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

// GetTree reads the full recursive tree for treeish (a branch name or
// tree sha). When etag is non-empty the read is conditional: an
// unchanged tree returns ErrNotModified and the same etag. The
// returned etag is the validator to pass next time.
func (client *Client) GetTree(ctx context.Context, owner, repo, treeish, etag string) (*Tree, string, error) {
	request := apiRequest{
		method:      http.MethodGet,
		url:         client.baseURL + fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", url.PathEscape(owner), url.PathEscape(repo), escapePath(treeish)),
		ifNoneMatch: etag,
	}
	response, err := client.do(ctx, request)
	if err != nil {
		return nil, "", fmt.Errorf("getting tree %s of %s/%s: %w", treeish, owner, repo, err)
	}
	if response.status == http.StatusNotModified {
		return nil, etag, ErrNotModified
	}
	var tree Tree
	if err := json.Unmarshal(response.body, &tree); err != nil {
		return nil, "", fmt.Errorf("decoding tree %s of %s/%s: %w", treeish, owner, repo, err)
	}
	return &tree, response.header.Get("ETag"), nil
}

// GetBlob reads a blob by sha.
func (client *Client) GetBlob(ctx context.Context, owner, repo, sha string) (*Blob, error) {
	var blob Blob
	path := fmt.Sprintf("/repos/%s/%s/git/blobs/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(sha))
	if err := client.get(ctx, path, &blob); err != nil {
		return nil, fmt.Errorf("getting blob %s in %s/%s: %w", sha, owner, repo, err)
	}
	return &blob, nil
}

// GetRef reads a reference such as "heads/main".
func (client *Client) GetRef(ctx context.Context, owner, repo, ref string) (*Ref, error) {
	var result Ref
	path := fmt.Sprintf("/repos/%s/%s/git/ref/%s", url.PathEscape(owner), url.PathEscape(repo), escapePath(ref))
	if err := client.get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("getting ref %s in %s/%s: %w", ref, owner, repo, err)
	}
	return &result, nil
}

// GetCommit reads a commit object.
func (client *Client) GetCommit(ctx context.Context, owner, repo, sha string) (*Commit, error) {
	var commit Commit
	path := fmt.Sprintf("/repos/%s/%s/git/commits/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(sha))
	if err := client.get(ctx, path, &commit); err != nil {
		return nil, fmt.Errorf("getting commit %s in %s/%s: %w", sha, owner, repo, err)
	}
	return &commit, nil
}

// CreateTreeRequest describes a tree built on top of BaseTree.
type CreateTreeRequest struct {
	BaseTree string            `json:"base_tree,omitempty"`
	Entries  []CreateTreeEntry `json:"tree"`
}

// CreateTreeEntry sets or removes one path in a new tree. Mode is
// "100644" for regular files, "100755" for executables, "120000" for
// symlinks.
type CreateTreeEntry struct {
	Path string
	Mode string
	Type string

	// SHA names an existing blob to place at Path.
	SHA string

	// Delete removes Path from the base tree.
	Delete bool
}

// MarshalJSON encodes a deletion as "sha": null, which is how the
// tree endpoint tells a removal from an omitted field.
func (entry CreateTreeEntry) MarshalJSON() ([]byte, error) {
	mode, kind := entry.Mode, entry.Type
	if mode == "" {
		mode = "100644"
	}
	if kind == "" {
		kind = "blob"
	}
	wire := struct {
		Path string  `json:"path"`
		Mode string  `json:"mode"`
		Type string  `json:"type"`
		SHA  *string `json:"sha"`
	}{Path: entry.Path, Mode: mode, Type: kind}
	if !entry.Delete {
		sha := entry.SHA
		wire.SHA = &sha
	}
	return json.Marshal(wire)
}

// CreateCommitRequest contains the fields for creating a git commit.
type CreateCommitRequest struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

// CreateTree creates a git tree object.
func (client *Client) CreateTree(ctx context.Context, owner, repo string, request CreateTreeRequest) (*Tree, error) {
	var tree Tree
	path := fmt.Sprintf("/repos/%s/%s/git/trees", url.PathEscape(owner), url.PathEscape(repo))
	if err := client.write(ctx, http.MethodPost, path, request, &tree); err != nil {
		return nil, fmt.Errorf("creating tree in %s/%s: %w", owner, repo, err)
	}
	return &tree, nil
}

// CreateCommit creates a git commit object.
func (client *Client) CreateCommit(ctx context.Context, owner, repo string, request CreateCommitRequest) (*Commit, error) {
	var commit Commit
	path := fmt.Sprintf("/repos/%s/%s/git/commits", url.PathEscape(owner), url.PathEscape(repo))
	if err := client.write(ctx, http.MethodPost, path, request, &commit); err != nil {
		return nil, fmt.Errorf("creating commit in %s/%s: %w", owner, repo, err)
	}
	return &commit, nil
}

// UpdateRef moves ref (for example "heads/main") to sha. Without
// force the update must be a fast-forward.
func (client *Client) UpdateRef(ctx context.Context, owner, repo, ref, sha string, force bool) (*Ref, error) {
	request := struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}{SHA: sha, Force: force}
	var result Ref
	path := fmt.Sprintf("/repos/%s/%s/git/refs/%s", url.PathEscape(owner), url.PathEscape(repo), escapePath(ref))
	if err := client.write(ctx, http.MethodPatch, path, request, &result); err != nil {
		return nil, fmt.Errorf("updating ref %s in %s/%s: %w", ref, owner, repo, err)
	}
	return &result, nil
}
