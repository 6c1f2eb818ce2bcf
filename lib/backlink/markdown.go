// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backlink

import (
	"sort"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownInstance
}

// outline is what the indexer needs from a parsed page.
type outline struct {
	// title is the plain text of the first heading, if any.
	title string

	// code lists sorted, non-overlapping byte ranges covered by code
	// spans and code blocks, where references do not count.
	code []span
}

type span struct{ start, end int }

func (s span) contains(offset int) bool { return offset >= s.start && offset < s.end }

func parseOutline(source []byte) outline {
	document := markdown().Parser().Parse(text.NewReader(source))

	var result outline
	titled := false
	ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := node.(type) {
		case *ast.Heading:
			if !titled {
				titled = true
				result.title = strings.TrimSpace(plainText(node, source))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				result.code = append(result.code, span{segment.Start, segment.Stop})
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			// Include the backticks so "`#tag`" is fully covered.
			first, last := -1, -1
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if leaf, ok := child.(*ast.Text); ok {
					if first < 0 {
						first = leaf.Segment.Start
					}
					last = leaf.Segment.Stop
				}
			}
			if first >= 0 {
				start, end := first, last
				for start > 0 && source[start-1] == '`' {
					start--
				}
				for end < len(source) && source[end] == '`' {
					end++
				}
				result.code = append(result.code, span{start, end})
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	sort.Slice(result.code, func(i, j int) bool { return result.code[i].start < result.code[j].start })
	return result
}

// plainText concatenates the text leaves below node.
func plainText(node ast.Node, source []byte) string {
	var builder strings.Builder
	ast.Walk(node, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch leaf := child.(type) {
		case *ast.Text:
			builder.Write(leaf.Segment.Value(source))
			if leaf.SoftLineBreak() {
				builder.WriteByte(' ')
			}
		case *ast.String:
			builder.Write(leaf.Value)
		}
		return ast.WalkContinue, nil
	})
	return builder.String()
}

// DisplayName returns the plain text of the first heading in a
// markdown page, or "" when it has none.
func DisplayName(content []byte) string {
	return parseOutline(content).title
}
