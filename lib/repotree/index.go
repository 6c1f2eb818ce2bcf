// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repotree

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/padfs/lib/backlink"
	"github.com/bureau-foundation/padfs/lib/vfs"
)

type pendingPage struct {
	path    string
	sha     string
	content []byte
	loaded  bool
}

// reindex rebuilds the backlink index of a wiki from the current
// tree, fetching page content that has not been cached yet. The
// result is attached only if the tree was not replaced meanwhile.
func (c *Cache) reindex(ctx context.Context, id RepoID, h *handle) (links int, applied bool, err error) {
	c.mu.Lock()
	if h.tree == nil {
		c.mu.Unlock()
		return 0, false, nil
	}
	generation := h.tree.generation
	h.indexStale = false
	var pages []*pendingPage
	for p, entry := range h.tree.entries {
		if entry.Kind != KindBlob || !IsMarkdown(p) {
			continue
		}
		pages = append(pages, &pendingPage{
			path:    p,
			sha:     entry.SHA,
			content: entry.Content,
			loaded:  entry.HasContent,
		})
	}
	c.mu.Unlock()

	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(c.fetchLimit)
	for _, page := range pages {
		if page.loaded {
			continue
		}
		group.Go(func() error {
			content, err := c.fetchBlob(groupContext, id, page.sha)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", page.path, err)
			}
			page.content = content
			page.loaded = true
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		c.mu.Lock()
		h.indexStale = true
		c.mu.Unlock()
		return 0, false, err
	}

	documents := make([]backlink.Document, len(pages))
	for i, page := range pages {
		documents[i] = backlink.Document{Path: page.path, Content: page.content}
	}
	index := backlink.Build(documents)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, page := range pages {
		if entry, ok := h.tree.entries[page.path]; ok && entry.SHA == page.sha && !entry.HasContent {
			entry.Content = page.content
			entry.HasContent = true
		}
	}
	if h.tree.generation != generation {
		c.logger.Debug("discarding backlink index of a replaced tree", "repository", id.String())
		return 0, false, nil
	}
	h.index = index
	h.repo.IndexGeneration++
	for p, entry := range h.tree.entries {
		if entry.Kind != KindBlob || !IsMarkdown(p) {
			continue
		}
		entry.DisplayName = index.DisplayName(p)
		entry.BackLinks = index.BackLinks(p)
	}
	c.logger.Info("backlinks indexed",
		"repository", id.String(),
		"pages", len(pages),
		"links", index.Links(),
	)
	return index.Links(), true, nil
}

// fetchBlob reads one blob, sharing concurrent reads of the same sha.
func (c *Cache) fetchBlob(ctx context.Context, id RepoID, sha string) ([]byte, error) {
	value, err, _ := c.blobs.Do(id.Owner+"/"+id.Name+"#"+sha, func() (any, error) {
		blob, err := c.source.GetBlob(ctx, id.Owner, id.Name, sha)
		if err != nil {
			return nil, vfs.Classify(err)
		}
		return blob.Decode()
	})
	if err != nil {
		return nil, err
	}
	return value.([]byte), nil
}

// Content returns the bytes of the blob at p, fetching and caching
// them on first use.
func (c *Cache) Content(ctx context.Context, id RepoID, p string) ([]byte, error) {
	content, _, err := c.Blob(ctx, id, p)
	return content, err
}

// Blob is Content that also returns the sha the bytes belong to.
func (c *Cache) Blob(ctx context.Context, id RepoID, p string) ([]byte, string, error) {
	entry, err := c.Entry(id, p)
	if err != nil {
		return nil, "", err
	}
	if entry.Kind != KindBlob {
		return nil, "", vfs.ErrIsDirectory
	}
	if entry.HasContent {
		return entry.Content, entry.SHA, nil
	}
	content, err := c.fetchBlob(ctx, id, entry.SHA)
	if err != nil {
		return nil, "", err
	}
	c.ApplyContent(id, p, entry.SHA, content)
	return content, entry.SHA, nil
}

func (c *Cache) treeLocked(id RepoID) (*handle, error) {
	h, ok := c.repos[id]
	if !ok || h.tree == nil {
		return nil, ErrNotOpen
	}
	return h, nil
}

func copyEntry(entry *Entry) Entry {
	copied := *entry
	copied.BackLinks = append([]vfs.BackLink(nil), entry.BackLinks...)
	return copied
}

// Entry returns the entry at p. The root and directories implied by
// deeper paths are returned as synthetic tree entries.
func (c *Cache) Entry(id RepoID, p string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.treeLocked(id)
	if err != nil {
		return Entry{}, err
	}
	if entry, ok := h.tree.entries[p]; ok {
		return copyEntry(entry), nil
	}
	if h.tree.isDirectory(p) {
		return Entry{Path: p, Kind: KindTree}, nil
	}
	return Entry{}, vfs.ErrNotFound
}

// Children lists the directory at p.
func (c *Cache) Children(id RepoID, p string) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.treeLocked(id)
	if err != nil {
		return nil, err
	}
	if entry, ok := h.tree.entries[p]; ok && entry.Kind == KindBlob {
		return nil, vfs.ErrNotDirectory
	}
	if !h.tree.isDirectory(p) {
		return nil, vfs.ErrNotFound
	}
	children := h.tree.children(p)
	for i := range children {
		children[i].BackLinks = append([]vfs.BackLink(nil), children[i].BackLinks...)
	}
	return children, nil
}

// Blobs returns every blob at or below p.
func (c *Cache) Blobs(id RepoID, p string) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.treeLocked(id)
	if err != nil {
		return nil, err
	}
	return h.tree.blobsUnder(p), nil
}

// ApplyContent caches content for the blob at p if its sha is still
// sha.
func (c *Cache) ApplyContent(id RepoID, p, sha string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.treeLocked(id)
	if err != nil {
		return
	}
	if entry, ok := h.tree.entries[p]; ok && entry.SHA == sha {
		entry.Content = content
		entry.HasContent = true
	}
}

// ApplyWrite records a successful write of the blob at p, creating
// the entry if it is new.
func (c *Cache) ApplyWrite(id RepoID, p, sha string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.treeLocked(id)
	if err != nil {
		return
	}
	entry, ok := h.tree.entries[p]
	if !ok {
		entry = &Entry{Path: p, Mode: "100644", Kind: KindBlob}
		h.tree.entries[p] = entry
	}
	entry.SHA = sha
	entry.Size = int64(len(content))
	entry.Content = append([]byte(nil), content...)
	entry.HasContent = true
	if IsMarkdown(p) {
		h.indexStale = true
	}
}

// ApplyRemove drops the entries at the given paths and everything
// below them, along with directories left without a blob.
func (c *Cache) ApplyRemove(id RepoID, paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.treeLocked(id)
	if err != nil {
		return
	}
	for _, p := range paths {
		prefix := p + "/"
		for candidate, entry := range h.tree.entries {
			if candidate != p && !strings.HasPrefix(candidate, prefix) {
				continue
			}
			if entry.Kind == KindBlob && IsMarkdown(candidate) {
				h.indexStale = true
			}
			delete(h.tree.entries, candidate)
		}
		h.tree.pruneEmpty(p)
	}
}

// ApplyRename moves the entry at from, and everything below it, to
// to.
func (c *Cache) ApplyRename(id RepoID, from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, err := c.treeLocked(id)
	if err != nil {
		return
	}
	moved := make(map[string]*Entry)
	prefix := from + "/"
	for p, entry := range h.tree.entries {
		if p != from && !strings.HasPrefix(p, prefix) {
			continue
		}
		if entry.Kind == KindBlob && (IsMarkdown(p) || IsMarkdown(to)) {
			h.indexStale = true
		}
		delete(h.tree.entries, p)
		entry.Path = to + p[len(from):]
		moved[entry.Path] = entry
	}
	for p, entry := range moved {
		h.tree.entries[p] = entry
	}
	h.tree.pruneEmpty(from)
}

// SetLatestCommit records the head commit produced by a local write.
func (c *Cache) SetLatestCommit(id RepoID, sha string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.repos[id]; ok {
		h.repo.LatestCommit = sha
	}
}
