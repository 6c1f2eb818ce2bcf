// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bureau-foundation/padfs/lib/vfs"
)

func numbered(n int, replace map[int]string) string {
	var builder strings.Builder
	for i := 1; i <= n; i++ {
		if line, ok := replace[i]; ok {
			builder.WriteString(line)
		} else {
			fmt.Fprintf(&builder, "line %d", i)
		}
		builder.WriteByte('\n')
	}
	return builder.String()
}

type fakeRemote struct {
	content  string
	sha      string
	readErr  error
	writeErr error
	written  []string
	writeSHA []string
}

func (f *fakeRemote) Current(context.Context) ([]byte, string, error) {
	if f.readErr != nil {
		return nil, "", f.readErr
	}
	return []byte(f.content), f.sha, nil
}

func (f *fakeRemote) Write(_ context.Context, content []byte, sha string) (string, error) {
	f.writeSHA = append(f.writeSHA, sha)
	if f.writeErr != nil {
		return "", f.writeErr
	}
	f.written = append(f.written, string(content))
	f.content = string(content)
	f.sha = "merged-sha"
	return f.sha, nil
}

func TestResolveUnrelatedEdits(t *testing.T) {
	base := numbered(12, nil)
	local := numbered(12, map[int]string{3: "local three"})
	remote := &fakeRemote{content: numbered(12, map[int]string{9: "remote nine"}), sha: "head"}

	var outcomes []Outcome
	resolver := NewResolver(Options{Observer: func(o Outcome) { outcomes = append(outcomes, o) }})
	result, err := resolver.Resolve(context.Background(), []byte(base), []byte(local), remote)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := numbered(12, map[int]string{3: "local three", 9: "remote nine"})
	if string(result.Merged) != want {
		t.Errorf("merged =\n%s\nwant\n%s", result.Merged, want)
	}
	if len(remote.writeSHA) != 1 || remote.writeSHA[0] != "head" {
		t.Errorf("write used shas %v, want [head]", remote.writeSHA)
	}
	if result.BaseSHA != "head" || result.SHA != "merged-sha" || result.Hunks != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(outcomes) != 1 || outcomes[0] != OutcomeMerged {
		t.Errorf("outcomes = %v", outcomes)
	}
}

func TestResolveSameLineIsUnresolvable(t *testing.T) {
	base := numbered(12, nil)
	local := numbered(12, map[int]string{5: "local five"})
	remote := &fakeRemote{content: numbered(12, map[int]string{5: "remote five"}), sha: "head"}

	var outcomes []Outcome
	resolver := NewResolver(Options{Observer: func(o Outcome) { outcomes = append(outcomes, o) }})
	_, err := resolver.Resolve(context.Background(), []byte(base), []byte(local), remote)
	if !errors.Is(err, vfs.ErrUnresolvableConflict) {
		t.Fatalf("error = %v, want ErrUnresolvableConflict", err)
	}
	if len(remote.written) != 0 {
		t.Errorf("conflicting merge wrote %q", remote.written)
	}
	if len(outcomes) != 1 || outcomes[0] != OutcomeConflict {
		t.Errorf("outcomes = %v", outcomes)
	}
}

func TestResolvePartialFailureWritesNothing(t *testing.T) {
	base := numbered(30, nil)
	local := numbered(30, map[int]string{2: "local two", 25: "local twenty-five"})
	remote := &fakeRemote{content: numbered(30, map[int]string{25: "remote twenty-five"}), sha: "head"}

	_, err := NewResolver(Options{}).Resolve(context.Background(), []byte(base), []byte(local), remote)
	if !errors.Is(err, vfs.ErrUnresolvableConflict) {
		t.Fatalf("error = %v, want ErrUnresolvableConflict", err)
	}
	if len(remote.written) != 0 {
		t.Error("merge with one failing hunk wrote a partial result")
	}
}

func TestResolveRemoteDeleted(t *testing.T) {
	remote := &fakeRemote{readErr: fmt.Errorf("reading: %w", vfs.ErrNotFound)}
	_, err := NewResolver(Options{}).Resolve(context.Background(), []byte("a\n"), []byte("b\n"), remote)
	if !errors.Is(err, vfs.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestResolveRemoteMovesAgain(t *testing.T) {
	remote := &fakeRemote{
		content:  numbered(5, nil),
		sha:      "head",
		writeErr: fmt.Errorf("sha mismatch: %w", vfs.ErrConflict),
	}
	_, err := NewResolver(Options{}).Resolve(context.Background(),
		[]byte(numbered(5, nil)), []byte(numbered(5, map[int]string{1: "x"})), remote)
	if !errors.Is(err, vfs.ErrUnresolvableConflict) || !errors.Is(err, vfs.ErrConflict) {
		t.Fatalf("error = %v, want both conflict sentinels", err)
	}
}

func TestResolveBinaryIsUnresolvable(t *testing.T) {
	remote := &fakeRemote{content: "x", sha: "head"}
	_, err := NewResolver(Options{}).Resolve(context.Background(), []byte{0xff, 0xfe}, []byte("x"), remote)
	if !errors.Is(err, vfs.ErrUnresolvableConflict) {
		t.Fatalf("error = %v, want ErrUnresolvableConflict", err)
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		local  string
		remote string
		want   string
	}{
		{
			name:   "remote insertion shifts the hunk",
			base:   numbered(10, nil),
			local:  numbered(10, map[int]string{8: "local eight"}),
			remote: "new first\nnew second\n" + numbered(10, nil),
			want:   "new first\nnew second\n" + numbered(10, map[int]string{8: "local eight"}),
		},
		{
			name:   "append to a file without final newline",
			base:   "a\nb",
			local:  "a\nb\nc",
			remote: "z\na\nb",
			want:   "z\na\nb\nc",
		},
		{
			name:   "local adds final newline",
			base:   "a\nb",
			local:  "a\nb\n",
			remote: "a\nb",
			want:   "a\nb\n",
		},
		{
			name:   "write into empty file",
			base:   "",
			local:  "hello\n",
			remote: "",
			want:   "hello\n",
		},
		{
			name:   "delete lines",
			base:   numbered(6, nil),
			local:  "line 1\nline 2\nline 6\n",
			remote: numbered(6, nil) + "line 7\n",
			want:   "line 1\nline 2\nline 6\nline 7\n",
		},
		{
			name:   "no change",
			base:   "same\n",
			local:  "same\n",
			remote: "other\n",
			want:   "other\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			patch, err := Diff([]byte(test.base), []byte(test.local), DefaultContext)
			if err != nil {
				t.Fatalf("Diff: %v", err)
			}
			got, err := patch.Apply([]byte(test.remote))
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if string(got) != test.want {
				t.Errorf("Apply = %q, want %q", got, test.want)
			}
		})
	}
}

func TestDiffEmpty(t *testing.T) {
	patch, err := Diff([]byte("a\nb\n"), []byte("a\nb\n"), DefaultContext)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !patch.Empty() || patch.Hunks() != 0 {
		t.Errorf("identical inputs produced %d hunks", patch.Hunks())
	}
}
