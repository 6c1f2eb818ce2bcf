// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repofs

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bureau-foundation/padfs/lib/github"
)

// fakeRepo is an in-memory repository with one branch. It serves both
// the tree cache and the file system, and enforces the same sha and
// fast-forward checks the remote does.
type fakeRepo struct {
	mu       sync.Mutex
	name     string
	files    map[string]string
	blobs    map[string]string
	revision int
	head     string
	commits  map[string]fakeCommit
	trees    map[string]map[string]string

	signedOut bool
	puts      []github.UpdateFileRequest
	created   [][]github.CreateTreeEntry
	treeGets  int
	blobGets  int
}

type fakeCommit struct {
	tree   string
	parent string
}

func newFakeRepo(name string, files map[string]string) *fakeRepo {
	repo := &fakeRepo{
		name:    name,
		files:   make(map[string]string),
		blobs:   make(map[string]string),
		commits: make(map[string]fakeCommit),
		trees:   make(map[string]map[string]string),
	}
	for p, content := range files {
		repo.files[p] = content
		repo.blobs[blobSHA(content)] = content
	}
	repo.commitLocked()
	return repo
}

func blobSHA(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// commitLocked records the current files as a new head commit.
func (f *fakeRepo) commitLocked() string {
	f.revision++
	tree := fmt.Sprintf("tree-%d", f.revision)
	f.trees[tree] = copyFiles(f.files)
	commit := fmt.Sprintf("commit-%d", f.revision)
	f.commits[commit] = fakeCommit{tree: tree, parent: f.head}
	f.head = commit
	return commit
}

func copyFiles(files map[string]string) map[string]string {
	copied := make(map[string]string, len(files))
	for p, content := range files {
		copied[p] = content
	}
	return copied
}

// external changes a file the way another client would: the cache
// does not hear about it until it refreshes.
func (f *fakeRepo) external(p string, content *string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if content == nil {
		delete(f.files, p)
	} else {
		f.files[p] = *content
		f.blobs[blobSHA(*content)] = *content
	}
	f.commitLocked()
}

func (f *fakeRepo) file(p string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[p]
	return content, ok
}

func (f *fakeRepo) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (f *fakeRepo) SignedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.signedOut
}

func notFound() error { return &github.APIError{StatusCode: 404, Message: "Not Found"} }

func (f *fakeRepo) GetRepository(_ context.Context, owner, repo string) (*github.Repository, error) {
	if repo != f.name {
		return nil, notFound()
	}
	return &github.Repository{Name: repo, DefaultBranch: "main"}, nil
}

func (f *fakeRepo) GetTree(_ context.Context, owner, repo, treeish, etag string) (*github.Tree, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.treeGets++
	current := fmt.Sprintf(`"%d"`, f.revision)
	if etag == current {
		return nil, "", github.ErrNotModified
	}
	tree := &github.Tree{SHA: f.commits[f.head].tree}
	paths := make([]string, 0, len(f.files))
	directories := make(map[string]bool)
	for p := range f.files {
		paths = append(paths, p)
		for dir := path.Dir(p); dir != "." && !directories[dir]; dir = path.Dir(dir) {
			directories[dir] = true
			paths = append(paths, dir)
		}
	}
	sort.Strings(paths)
	// The recursive listing names every directory as a tree entry.
	for _, p := range paths {
		if directories[p] {
			tree.Entries = append(tree.Entries, github.TreeEntry{
				Path: p, Mode: "040000", Type: "tree", SHA: blobSHA("tree " + p),
			})
			continue
		}
		tree.Entries = append(tree.Entries, github.TreeEntry{
			Path: p, Mode: "100644", Type: "blob", SHA: blobSHA(f.files[p]), Size: int64(len(f.files[p])),
		})
	}
	return tree, current, nil
}

func (f *fakeRepo) GetBlob(_ context.Context, owner, repo, sha string) (*github.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobGets++
	content, ok := f.blobs[sha]
	if !ok {
		return nil, notFound()
	}
	return &github.Blob{SHA: sha, Content: base64.StdEncoding.EncodeToString([]byte(content)), Encoding: "base64"}, nil
}

func (f *fakeRepo) GetContents(_ context.Context, owner, repo, p, ref string) (*github.FileContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[p]
	if !ok {
		return nil, notFound()
	}
	return &github.FileContent{
		Type:     "file",
		Path:     p,
		SHA:      blobSHA(content),
		Content:  base64.StdEncoding.EncodeToString([]byte(content)),
		Encoding: "base64",
	}, nil
}

func (f *fakeRepo) PutContents(_ context.Context, owner, repo, p string, request github.UpdateFileRequest) (*github.UpdateFileResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, request)
	current, exists := f.files[p]
	switch {
	case exists && request.SHA == "":
		return nil, &github.APIError{StatusCode: 422, Message: `"sha" wasn't supplied.`}
	case request.SHA != "" && (!exists || blobSHA(current) != request.SHA):
		return nil, &github.APIError{StatusCode: 409, Message: p + " does not match " + request.SHA}
	}
	content := string(request.Content)
	f.files[p] = content
	f.blobs[blobSHA(content)] = content
	commit := f.commitLocked()
	response := &github.UpdateFileResponse{Content: github.FileContent{Path: p, SHA: blobSHA(content)}}
	response.Commit.SHA = commit
	return response, nil
}

func (f *fakeRepo) GetRef(_ context.Context, owner, repo, ref string) (*github.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ref != "heads/main" {
		return nil, notFound()
	}
	result := &github.Ref{Ref: "refs/" + ref}
	result.Object.SHA = f.head
	result.Object.Type = "commit"
	return result, nil
}

func (f *fakeRepo) GetCommit(_ context.Context, owner, repo, sha string) (*github.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.commits[sha]
	if !ok {
		return nil, notFound()
	}
	commit := &github.Commit{SHA: sha}
	commit.Tree.SHA = stored.tree
	return commit, nil
}

func (f *fakeRepo) CreateTree(_ context.Context, owner, repo string, request github.CreateTreeRequest) (*github.Tree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base, ok := f.trees[request.BaseTree]
	if !ok {
		return nil, &github.APIError{StatusCode: 422, Message: "base_tree not found"}
	}
	f.created = append(f.created, request.Entries)
	files := copyFiles(base)
	for _, entry := range request.Entries {
		if entry.Delete {
			delete(files, entry.Path)
			continue
		}
		files[entry.Path] = f.blobs[entry.SHA]
	}
	f.revision++
	sha := fmt.Sprintf("tree-%d", f.revision)
	f.trees[sha] = files
	return &github.Tree{SHA: sha}, nil
}

func (f *fakeRepo) CreateCommit(_ context.Context, owner, repo string, request github.CreateCommitRequest) (*github.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trees[request.Tree]; !ok || len(request.Parents) != 1 {
		return nil, &github.APIError{StatusCode: 422, Message: "invalid commit"}
	}
	sha := "commit-for-" + request.Tree
	f.commits[sha] = fakeCommit{tree: request.Tree, parent: request.Parents[0]}
	return &github.Commit{SHA: sha, Message: request.Message}, nil
}

func (f *fakeRepo) UpdateRef(_ context.Context, owner, repo, ref, sha string, force bool) (*github.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commit, ok := f.commits[sha]
	if !ok || (!force && commit.parent != f.head) {
		return nil, &github.APIError{StatusCode: 422, Message: "Update is not a fast forward"}
	}
	f.head = sha
	f.files = copyFiles(f.trees[commit.tree])
	f.revision++
	return &github.Ref{Ref: "refs/" + ref}, nil
}

func (f *fakeRepo) lastCreated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	var described []string
	for _, entry := range f.created[len(f.created)-1] {
		if entry.Delete {
			described = append(described, "-"+entry.Path)
		} else {
			described = append(described, "+"+entry.Path)
		}
	}
	sort.Strings(described)
	return described
}

func (f *fakeRepo) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func joinLines(lines ...string) string { return strings.Join(lines, "\n") + "\n" }
