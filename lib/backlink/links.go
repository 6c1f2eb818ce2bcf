// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backlink

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bureau-foundation/padfs/lib/vfs"
)

// LinkKind distinguishes the two reference forms.
type LinkKind int

const (
	PageReference LinkKind = iota
	Tag
)

func (k LinkKind) String() string {
	if k == Tag {
		return "tag"
	}
	return "page"
}

// Link is one reference found in a page. Start and End are byte
// offsets of the whole reference, brackets or hash included.
type Link struct {
	Kind  LinkKind
	Title string
	Start int
	End   int
}

// referencePattern matches "[[Title]]" or "[[Title|label]]" in group
// 1, and a "#tag" that starts a line or follows whitespace or an
// opening parenthesis in group 2. "# Heading" never matches: a tag
// needs a non-space character right after the hash.
var referencePattern = regexp.MustCompile(`\[\[([^\[\]\n]+?)\]\]|(?:^|[\s(])#([\p{L}\p{N}_][\p{L}\p{N}_\-/]*)`)

// ExtractLinks returns the references in a markdown page in source
// order, ignoring anything inside code spans and code blocks.
func ExtractLinks(content []byte) []Link {
	return extractLinks(content, parseOutline(content).code)
}

func extractLinks(content []byte, code []span) []Link {
	var links []Link
	for _, match := range referencePattern.FindAllSubmatchIndex(content, -1) {
		var link Link
		switch {
		case match[2] >= 0:
			title, _, _ := strings.Cut(string(content[match[2]:match[3]]), "|")
			link = Link{Kind: PageReference, Title: strings.TrimSpace(title), Start: match[0], End: match[1]}
		case match[4] >= 0:
			// The span starts at the hash, after any leading
			// separator the pattern consumed.
			link = Link{Kind: Tag, Title: string(content[match[4]:match[5]]), Start: match[4] - 1, End: match[5]}
		default:
			continue
		}
		if link.Title == "" || inCode(code, link.Start) {
			continue
		}
		links = append(links, link)
	}
	return links
}

func inCode(code []span, offset int) bool {
	for _, region := range code {
		if region.start > offset {
			return false
		}
		if region.contains(offset) {
			return true
		}
	}
	return false
}

// lineIndex converts byte offsets into line and rune positions.
type lineIndex struct {
	source []byte
	starts []int
}

func newLineIndex(source []byte) lineIndex {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{source: source, starts: starts}
}

func (index lineIndex) line(offset int) int {
	low, high := 0, len(index.starts)-1
	for low < high {
		middle := (low + high + 1) / 2
		if index.starts[middle] <= offset {
			low = middle
		} else {
			high = middle - 1
		}
	}
	return low
}

func (index lineIndex) position(offset int) vfs.Position {
	line := index.line(offset)
	return vfs.Position{
		Line:      line,
		Character: utf8.RuneCount(index.source[index.starts[line]:offset]),
	}
}

// text returns line number line without its terminator.
func (index lineIndex) text(line int) string {
	start := index.starts[line]
	end := len(index.source)
	if line+1 < len(index.starts) {
		end = index.starts[line+1] - 1
	}
	return strings.TrimRight(string(index.source[start:end]), "\r")
}
