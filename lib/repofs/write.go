// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repofs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/padfs/lib/github"
	"github.com/bureau-foundation/padfs/lib/merge"
	"github.com/bureau-foundation/padfs/lib/repotree"
	"github.com/bureau-foundation/padfs/lib/vfs"
)

// WriteFile writes content against the version of the file last read
// through this FileSystem, or the cached tree's when it was never read.
func (fs *FileSystem) WriteFile(ctx context.Context, uri vfs.URI, content []byte) error {
	_, err := fs.write(ctx, uri, nil, content)
	return err
}

// WriteFileFrom writes content against base. An empty base.Version
// creates the file.
func (fs *FileSystem) WriteFileFrom(ctx context.Context, uri vfs.URI, base vfs.Base, content []byte) (vfs.Base, error) {
	return fs.write(ctx, uri, &base, content)
}

func (fs *FileSystem) write(ctx context.Context, uri vfs.URI, base *vfs.Base, content []byte) (vfs.Base, error) {
	if err := fs.requireSession(); err != nil {
		return vfs.Base{}, vfs.Fail("write", uri, err)
	}
	resolved, err := fs.resolve(uri)
	if err != nil {
		return vfs.Base{}, vfs.Fail("write", uri, err)
	}
	if resolved.name == "" || resolved.path == "" {
		return vfs.Base{}, vfs.Fail("write", uri, vfs.ErrIsDirectory)
	}

	existing, err := fs.cache.Entry(resolved.id, resolved.path)
	switch {
	case errors.Is(err, vfs.ErrNotFound):
		existing = repotree.Entry{}
	case err != nil:
		return vfs.Base{}, vfs.Fail("write", uri, err)
	case existing.Kind == repotree.KindTree:
		return vfs.Base{}, vfs.Fail("write", uri, vfs.ErrIsDirectory)
	}
	if err := fs.checkParent(resolved); err != nil {
		return vfs.Base{}, vfs.Fail("write", uri, err)
	}
	if base == nil {
		implied := fs.impliedBase(resolved, existing)
		base = &implied
	}

	sha, err := fs.put(ctx, resolved, content, base.Version)
	if github.IsShaMismatch(err) {
		sha, content, err = fs.merge(ctx, resolved, *base, content)
	}
	if err != nil {
		return vfs.Base{}, vfs.Fail("write", uri, vfs.Classify(err))
	}

	fs.cache.ApplyWrite(resolved.id, resolved.path, sha, content)
	fs.remember(resolved, sha)
	fs.cache.ScheduleRefresh(resolved.id)
	return vfs.Base{Version: sha, Content: append([]byte(nil), content...)}, nil
}

// impliedBase is the base of a write that names none: the version last
// read, else the cached entry.
func (fs *FileSystem) impliedBase(resolved target, existing repotree.Entry) vfs.Base {
	version, ok := fs.lastRead(resolved)
	if !ok {
		version = existing.SHA
	}
	base := vfs.Base{Version: version}
	if version != "" && version == existing.SHA && existing.HasContent {
		base.Content = existing.Content
	}
	return base
}

// checkParent refuses to write below a path that is a file.
func (fs *FileSystem) checkParent(resolved target) error {
	for dir := parentOf(resolved.path); dir != ""; dir = parentOf(dir) {
		entry, err := fs.cache.Entry(resolved.id, dir)
		if err == nil && entry.Kind == repotree.KindBlob {
			return vfs.ErrNotDirectory
		}
	}
	return nil
}

func parentOf(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}

// put writes content through the contents API. An empty sha creates
// the file. The raw client error is returned so callers can recognize
// a sha mismatch.
func (fs *FileSystem) put(ctx context.Context, resolved target, content []byte, sha string) (string, error) {
	message := "Create " + resolved.path
	if sha != "" {
		message = "Update " + resolved.path
	}
	response, err := fs.api.PutContents(ctx, resolved.id.Owner, resolved.id.Name, resolved.path, github.UpdateFileRequest{
		Message: message,
		Content: content,
		SHA:     sha,
		Branch:  resolved.id.Branch,
	})
	if err != nil {
		return "", err
	}
	fs.cache.SetLatestCommit(resolved.id, response.Commit.SHA)
	fs.logger.Debug("wrote file",
		"repository", resolved.id.String(),
		"path", resolved.path,
		"sha", response.Content.SHA,
		"commit", response.Commit.SHA,
	)
	return response.Content.SHA, nil
}

// merge replays a write whose base went stale onto the remote's
// current content. A base without content is read back by its sha.
func (fs *FileSystem) merge(ctx context.Context, resolved target, base vfs.Base, local []byte) (string, []byte, error) {
	if base.Version == "" {
		// The file was created remotely since the tree was read. There
		// is no common ancestor to diff against.
		return "", nil, fmt.Errorf("file was created remotely: %w", vfs.ErrUnresolvableConflict)
	}
	baseContent := base.Content
	if baseContent == nil {
		blob, err := fs.api.GetBlob(ctx, resolved.id.Owner, resolved.id.Name, base.Version)
		if err != nil {
			return "", nil, fmt.Errorf("reading merge base: %w", vfs.Classify(err))
		}
		if baseContent, err = blob.Decode(); err != nil {
			return "", nil, fmt.Errorf("reading merge base: %w", err)
		}
	}

	fs.logger.Info("write raced a remote change, merging",
		"repository", resolved.id.String(),
		"path", resolved.path,
		"base_sha", base.Version,
	)
	result, err := fs.resolver.Resolve(ctx, baseContent, local, &remoteFile{fs: fs, target: resolved})
	if err != nil {
		return "", nil, err
	}
	return result.SHA, result.Merged, nil
}

// remoteFile adapts one repository path to merge.Remote.
type remoteFile struct {
	fs     *FileSystem
	target target
}

var _ merge.Remote = (*remoteFile)(nil)

func (r *remoteFile) Current(ctx context.Context) ([]byte, string, error) {
	id := r.target.id
	file, err := r.fs.api.GetContents(ctx, id.Owner, id.Name, r.target.path, id.Branch)
	if err != nil {
		return nil, "", vfs.Classify(err)
	}
	content, err := file.Decode()
	if err != nil {
		return nil, "", err
	}
	return content, file.SHA, nil
}

func (r *remoteFile) Write(ctx context.Context, content []byte, sha string) (string, error) {
	newSHA, err := r.fs.put(ctx, r.target, content, sha)
	if github.IsShaMismatch(err) {
		return "", fmt.Errorf("%w: %v", vfs.ErrConflict, err)
	}
	if err != nil {
		return "", vfs.Classify(err)
	}
	return newSHA, nil
}

func (fs *FileSystem) Delete(ctx context.Context, uri vfs.URI) error {
	if err := fs.requireSession(); err != nil {
		return vfs.Fail("delete", uri, err)
	}
	resolved, err := fs.resolve(uri)
	if err != nil {
		return vfs.Fail("delete", uri, err)
	}
	if resolved.name == "" || resolved.path == "" {
		return vfs.Fail("delete", uri, fmt.Errorf("deleting a whole repository: %w", vfs.ErrNotSupported))
	}
	if _, err := fs.cache.Entry(resolved.id, resolved.path); err != nil {
		return vfs.Fail("delete", uri, err)
	}
	blobs, err := fs.cache.Blobs(resolved.id, resolved.path)
	if err != nil {
		return vfs.Fail("delete", uri, err)
	}

	changes := make([]github.CreateTreeEntry, len(blobs))
	for i, blob := range blobs {
		changes[i] = github.CreateTreeEntry{Path: blob.Path, Mode: blob.Mode, Delete: true}
	}
	if err := fs.commit(ctx, resolved.id, "Delete "+resolved.path, changes); err != nil {
		return vfs.Fail("delete", uri, err)
	}
	fs.cache.ApplyRemove(resolved.id, resolved.path)
	fs.forgetReads(resolved.id, resolved.path, "")
	fs.cache.ScheduleRefresh(resolved.id)
	return nil
}

func (fs *FileSystem) Rename(ctx context.Context, from, to vfs.URI) error {
	if err := fs.requireSession(); err != nil {
		return vfs.Fail("rename", from, err)
	}
	source, err := fs.resolve(from)
	if err != nil {
		return vfs.Fail("rename", from, err)
	}
	destination, err := fs.resolve(to)
	if err != nil {
		return vfs.Fail("rename", to, err)
	}
	switch {
	case source.name == "" || source.path == "" || destination.path == "":
		return vfs.Fail("rename", from, fmt.Errorf("renaming a repository: %w", vfs.ErrNotSupported))
	case source.id != destination.id:
		return vfs.Fail("rename", from, fmt.Errorf("moving across repositories: %w", vfs.ErrNotSupported))
	case destination.path == source.path:
		return nil
	case strings.HasPrefix(destination.path, source.path+"/"):
		return vfs.Fail("rename", from, fmt.Errorf("moving a directory into itself: %w", vfs.ErrNotSupported))
	}
	if _, err := fs.cache.Entry(source.id, source.path); err != nil {
		return vfs.Fail("rename", from, err)
	}
	if _, err := fs.cache.Entry(destination.id, destination.path); err == nil {
		return vfs.Fail("rename", to, vfs.ErrFileExists)
	}
	if err := fs.checkParent(destination); err != nil {
		return vfs.Fail("rename", to, err)
	}
	blobs, err := fs.cache.Blobs(source.id, source.path)
	if err != nil {
		return vfs.Fail("rename", from, err)
	}

	changes := make([]github.CreateTreeEntry, 0, 2*len(blobs))
	for _, blob := range blobs {
		changes = append(changes,
			github.CreateTreeEntry{Path: blob.Path, Mode: blob.Mode, Delete: true},
			github.CreateTreeEntry{Path: destination.path + blob.Path[len(source.path):], Mode: blob.Mode, SHA: blob.SHA},
		)
	}
	message := fmt.Sprintf("Rename %s to %s", source.path, destination.path)
	if err := fs.commit(ctx, source.id, message, changes); err != nil {
		return vfs.Fail("rename", from, err)
	}
	fs.cache.ApplyRename(source.id, source.path, destination.path)
	fs.forgetReads(source.id, source.path, destination.path)
	fs.cache.ScheduleRefresh(source.id)
	return nil
}

// commit records changes on top of the branch head as one commit and
// fast-forwards the branch to it.
func (fs *FileSystem) commit(ctx context.Context, id repotree.RepoID, message string, changes []github.CreateTreeEntry) error {
	ref := "heads/" + id.Branch
	head, err := fs.api.GetRef(ctx, id.Owner, id.Name, ref)
	if err != nil {
		return vfs.Classify(err)
	}
	parent, err := fs.api.GetCommit(ctx, id.Owner, id.Name, head.Object.SHA)
	if err != nil {
		return vfs.Classify(err)
	}
	tree, err := fs.api.CreateTree(ctx, id.Owner, id.Name, github.CreateTreeRequest{
		BaseTree: parent.Tree.SHA,
		Entries:  changes,
	})
	if err != nil {
		return vfs.Classify(err)
	}
	commit, err := fs.api.CreateCommit(ctx, id.Owner, id.Name, github.CreateCommitRequest{
		Message: message,
		Tree:    tree.SHA,
		Parents: []string{parent.SHA},
	})
	if err != nil {
		return vfs.Classify(err)
	}
	if _, err := fs.api.UpdateRef(ctx, id.Owner, id.Name, ref, commit.SHA, false); err != nil {
		return vfs.Classify(err)
	}
	fs.cache.SetLatestCommit(id, commit.SHA)
	fs.logger.Info("committed tree change",
		"repository", id.String(),
		"commit", commit.SHA,
		"paths", len(changes),
	)
	return nil
}
