// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backlink

import (
	"path"
	"sort"
	"strings"

	"github.com/bureau-foundation/padfs/lib/vfs"
)

// Document is one page offered to the indexer.
type Document struct {
	Path    string
	Content []byte
}

// Index holds the display names and backlinks of one page set.
type Index struct {
	displayNames map[string]string
	backLinks    map[string][]vfs.BackLink
	links        int
}

// Build indexes documents from scratch.
func Build(documents []Document) *Index {
	sorted := append([]Document(nil), documents...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	index := &Index{
		displayNames: make(map[string]string, len(sorted)),
		backLinks:    make(map[string][]vfs.BackLink),
	}
	outlines := make([]outline, len(sorted))
	for i, document := range sorted {
		outlines[i] = parseOutline(document.Content)
		if outlines[i].title != "" {
			index.displayNames[document.Path] = outlines[i].title
		}
	}

	resolve := newResolver(sorted, index.displayNames)
	for i, document := range sorted {
		lines := newLineIndex(document.Content)
		for _, link := range extractLinks(document.Content, outlines[i].code) {
			target, ok := resolve(link.Title)
			if !ok || target == document.Path {
				continue
			}
			start := lines.position(link.Start)
			index.backLinks[target] = append(index.backLinks[target], vfs.BackLink{
				Title: link.Title,
				Location: vfs.Location{
					Path:  document.Path,
					Range: vfs.Range{Start: start, End: lines.position(link.End)},
				},
				LinePreview: strings.TrimSpace(lines.text(start.Line)),
			})
			index.links++
		}
	}
	return index
}

// newResolver maps a reference title to a page path. Display names
// take precedence over paths; among equals the first path in sorted
// order wins.
func newResolver(documents []Document, displayNames map[string]string) func(string) (string, bool) {
	byName := make(map[string]string)
	byPath := make(map[string]string)
	for _, document := range documents {
		if name, ok := displayNames[document.Path]; ok {
			key := strings.ToLower(name)
			if _, taken := byName[key]; !taken {
				byName[key] = document.Path
			}
		}
		for _, key := range []string{
			strings.ToLower(document.Path),
			strings.ToLower(strings.TrimSuffix(document.Path, path.Ext(document.Path))),
		} {
			if _, taken := byPath[key]; !taken {
				byPath[key] = document.Path
			}
		}
	}
	return func(title string) (string, bool) {
		key := strings.ToLower(strings.TrimSpace(title))
		if target, ok := byName[key]; ok {
			return target, true
		}
		target, ok := byPath[key]
		return target, ok
	}
}

// BackLinks returns the references that point at the page at path.
func (index *Index) BackLinks(path string) []vfs.BackLink {
	if index == nil {
		return nil
	}
	return index.backLinks[path]
}

// DisplayName returns the first heading of the page at path.
func (index *Index) DisplayName(path string) string {
	if index == nil {
		return ""
	}
	return index.displayNames[path]
}

// Links counts the resolved references in the index.
func (index *Index) Links() int {
	if index == nil {
		return 0
	}
	return index.links
}
