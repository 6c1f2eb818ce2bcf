// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/bureau-foundation/padfs/lib/vfs"
)

// DefaultContext is the number of unchanged lines kept around each
// change.
const DefaultContext = 3

// text is a document split into lines that each end in "\n". The
// final newline of a document without one is recorded in noEOL and
// restored by join.
type text struct {
	lines []string
	noEOL bool
}

func splitText(content []byte) text {
	if len(content) == 0 {
		return text{}
	}
	s := string(content)
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		return text{lines: lines[:len(lines)-1]}
	}
	lines[len(lines)-1] += "\n"
	return text{lines: lines, noEOL: true}
}

func (t text) join() []byte {
	var buffer bytes.Buffer
	for _, line := range t.lines {
		buffer.WriteString(line)
	}
	content := buffer.Bytes()
	if t.noEOL && len(content) > 0 {
		content = content[:len(content)-1]
	}
	return content
}

// hunk is one parsed change: the lines it expects at origStart
// (zero-based) and the lines that replace them.
type hunk struct {
	origStart int
	before    []string
	after     []string
}

// Patch is the edit that turns one version of a document into
// another.
type Patch struct {
	hunks []hunk

	// A change of the final newline is not expressed by any hunk.
	eolChanged bool
	noEOL      bool
}

// Hunks is the number of changed regions in the patch.
func (p *Patch) Hunks() int { return len(p.hunks) }

// Empty reports whether applying the patch changes nothing.
func (p *Patch) Empty() bool { return len(p.hunks) == 0 && !p.eolChanged }

// Diff computes the patch from base to local with the given number of
// context lines.
func Diff(base, local []byte, context int) (*Patch, error) {
	from, to := splitText(base), splitText(local)
	patch := &Patch{eolChanged: from.noEOL != to.noEOL, noEOL: to.noEOL}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        from.lines,
		B:        to.lines,
		FromFile: "base",
		ToFile:   "local",
		Context:  context,
	})
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}
	if unified == "" {
		return patch, nil
	}

	parsed, err := diff.ParseFileDiff([]byte(unified))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	for _, parsedHunk := range parsed.Hunks {
		h := hunk{origStart: int(parsedHunk.OrigStartLine) - 1}
		if parsedHunk.OrigLines == 0 {
			// "-k,0" inserts after line k.
			h.origStart = int(parsedHunk.OrigStartLine)
		}
		for _, line := range strings.SplitAfter(string(parsedHunk.Body), "\n") {
			if line == "" {
				continue
			}
			switch line[0] {
			case ' ':
				h.before = append(h.before, line[1:])
				h.after = append(h.after, line[1:])
			case '-':
				h.before = append(h.before, line[1:])
			case '+':
				h.after = append(h.after, line[1:])
			}
		}
		patch.hunks = append(patch.hunks, h)
	}
	return patch, nil
}

// Apply replays the patch onto target. A hunk applies where its
// expected lines match exactly, searching outward from the position
// predicted by the hunks before it; hunks never overlap or reorder.
func (p *Patch) Apply(target []byte) ([]byte, error) {
	current := splitText(target)
	var result []string
	cursor := 0
	offset := 0
	for i, h := range p.hunks {
		at, ok := locate(current.lines, h.before, h.origStart+offset, cursor)
		if !ok {
			return nil, fmt.Errorf("hunk %d of %d at line %d does not apply: %w",
				i+1, len(p.hunks), h.origStart+1, vfs.ErrUnresolvableConflict)
		}
		result = append(result, current.lines[cursor:at]...)
		result = append(result, h.after...)
		cursor = at + len(h.before)
		offset = at - h.origStart
	}
	result = append(result, current.lines[cursor:]...)

	merged := text{lines: result, noEOL: current.noEOL}
	if p.eolChanged {
		merged.noEOL = p.noEOL
	}
	return merged.join(), nil
}

// locate finds the position nearest to want, at or after floor, where
// lines holds expected.
func locate(lines, expected []string, want, floor int) (int, bool) {
	last := len(lines) - len(expected)
	if last < floor {
		return 0, false
	}
	if want < floor {
		want = floor
	}
	if want > last {
		want = last
	}
	for distance := 0; ; distance++ {
		below, above := want-distance, want+distance
		if below < floor && above > last {
			return 0, false
		}
		if below >= floor && matches(lines[below:], expected) {
			return below, true
		}
		if distance > 0 && above <= last && matches(lines[above:], expected) {
			return above, true
		}
	}
}

func matches(lines, expected []string) bool {
	for i, line := range expected {
		if lines[i] != line {
			return false
		}
	}
	return true
}
