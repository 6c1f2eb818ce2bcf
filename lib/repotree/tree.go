// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repotree

import (
	"path"
	"sort"
	"strings"

	"github.com/bureau-foundation/padfs/lib/github"
	"github.com/bureau-foundation/padfs/lib/vfs"
)

// RepoID names one branch of one repository.
type RepoID struct {
	Owner  string
	Name   string
	Branch string
}

func (id RepoID) String() string {
	return id.Owner + "/" + id.Name + "@" + id.Branch
}

// EntryKind distinguishes blobs from directories.
type EntryKind int

const (
	KindBlob EntryKind = iota
	KindTree
)

// Entry is one path of a repository tree. Entries handed out by the
// Cache are copies; Content is shared and must not be modified.
type Entry struct {
	Path string
	SHA  string
	Mode string
	Kind EntryKind
	Size int64

	// Content is the blob's bytes when they have been fetched.
	Content    []byte
	HasContent bool

	// DisplayName and BackLinks are set for markdown pages of a wiki.
	DisplayName string
	BackLinks   []vfs.BackLink
}

// Name is the last element of the entry's path.
func (e Entry) Name() string { return path.Base(e.Path) }

// IsMarkdown reports whether p names a markdown page.
func IsMarkdown(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// fileTree is one snapshot of a repository tree. It is replaced, not
// patched, by refreshes; local writes adjust single entries.
type fileTree struct {
	sha        string
	etag       string
	truncated  bool
	generation uint64
	entries    map[string]*Entry
}

// buildTree converts a remote listing, carrying cached content from
// previous for entries whose path and sha are unchanged.
func buildTree(remote *github.Tree, etag string, previous *fileTree) *fileTree {
	next := &fileTree{
		sha:       remote.SHA,
		etag:      etag,
		truncated: remote.Truncated,
		entries:   make(map[string]*Entry, len(remote.Entries)),
	}
	for _, remoteEntry := range remote.Entries {
		entry := &Entry{
			Path: remoteEntry.Path,
			SHA:  remoteEntry.SHA,
			Mode: remoteEntry.Mode,
			Size: remoteEntry.Size,
		}
		switch remoteEntry.Type {
		case "blob":
			entry.Kind = KindBlob
		case "tree":
			entry.Kind = KindTree
		default:
			// Submodules have no content reachable through this
			// repository.
			continue
		}
		if previous != nil {
			if old, ok := previous.entries[entry.Path]; ok && old.SHA == entry.SHA && old.HasContent {
				entry.Content = old.Content
				entry.HasContent = true
			}
		}
		next.entries[entry.Path] = entry
	}
	return next
}

// markdownChanged reports whether any markdown blob was added,
// removed or changed between two snapshots.
func markdownChanged(previous, next *fileTree) bool {
	if previous == nil {
		return true
	}
	count := 0
	for p, entry := range next.entries {
		if entry.Kind != KindBlob || !IsMarkdown(p) {
			continue
		}
		count++
		old, ok := previous.entries[p]
		if !ok || old.SHA != entry.SHA {
			return true
		}
	}
	for p, entry := range previous.entries {
		if entry.Kind == KindBlob && IsMarkdown(p) {
			count--
		}
	}
	return count != 0
}

// isDirectory reports whether p is a directory, listed or implied by
// a deeper path.
func (t *fileTree) isDirectory(p string) bool {
	if p == "" {
		return true
	}
	if entry, ok := t.entries[p]; ok {
		return entry.Kind == KindTree
	}
	prefix := p + "/"
	for candidate := range t.entries {
		if strings.HasPrefix(candidate, prefix) {
			return true
		}
	}
	return false
}

// children lists the immediate children of directory dir, including
// directories only implied by deeper paths. Sorted by name.
func (t *fileTree) children(dir string) []Entry {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	byName := make(map[string]Entry)
	for p, entry := range t.entries {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if name, _, nested := strings.Cut(rest, "/"); nested {
			if _, ok := byName[name]; !ok {
				byName[name] = Entry{Path: prefix + name, Kind: KindTree}
			}
			continue
		}
		byName[rest] = *entry
	}
	listed := make([]Entry, 0, len(byName))
	for _, entry := range byName {
		listed = append(listed, entry)
	}
	sort.Slice(listed, func(i, j int) bool { return listed[i].Path < listed[j].Path })
	return listed
}

// blobsUnder returns every blob at p or below it, sorted by path.
func (t *fileTree) blobsUnder(p string) []Entry {
	var found []Entry
	prefix := p + "/"
	for candidate, entry := range t.entries {
		if entry.Kind != KindBlob {
			continue
		}
		if candidate == p || p == "" || strings.HasPrefix(candidate, prefix) {
			found = append(found, *entry)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found
}

// pruneEmpty drops the listed directories above p that no longer hold
// a blob. Git keeps no empty directories.
func (t *fileTree) pruneEmpty(p string) {
	for dir := parentDir(p); dir != ""; dir = parentDir(dir) {
		if len(t.blobsUnder(dir)) > 0 {
			return
		}
		if entry, ok := t.entries[dir]; ok && entry.Kind == KindTree {
			delete(t.entries, dir)
		}
	}
}

func parentDir(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}
