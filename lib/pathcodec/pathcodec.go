// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathcodec maps hierarchical paths onto the flat filenames of
// a snippet store. A directory separator is stored as the reserved
// token "---", so "notes/todo.md" becomes the key "notes---todo.md".
//
// Decoding turns only the first token back into a separator: a snippet
// store groups files one directory level deep. A name that itself
// contains the token cannot be represented; [Encode] refuses it with
// [ErrAmbiguous] and [Parse] reports keys written by other tools that
// carry it through [Key.Ambiguous].
package pathcodec

import (
	"errors"
	"fmt"
	"strings"
)

// Token replaces "/" inside stored filenames.
const Token = "---"

// ErrAmbiguous reports a path segment containing Token.
var ErrAmbiguous = errors.New("path segment contains the separator token " + Token)

// Encode returns the stored filename for path. Leading and trailing
// slashes are ignored.
func Encode(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", fmt.Errorf("encoding empty path")
	}
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if segment == "" {
			return "", fmt.Errorf("encoding %q: empty segment", path)
		}
		if strings.Contains(segment, Token) {
			return "", fmt.Errorf("encoding %q: segment %q: %w", path, segment, ErrAmbiguous)
		}
		// A trailing dash would merge with the token and move the
		// first match to the left.
		if i < len(segments)-1 && strings.HasSuffix(segment, "-") {
			return "", fmt.Errorf("encoding %q: directory %q ends with a dash: %w", path, segment, ErrAmbiguous)
		}
	}
	return strings.Join(segments, Token), nil
}

// Decode returns the path for a stored filename, replacing the first
// token only.
func Decode(key string) string {
	return strings.Replace(key, Token, "/", 1)
}

// DirectoryPrefix returns the key prefix shared by every file stored
// under directory.
func DirectoryPrefix(directory string) string {
	return strings.Trim(directory, "/") + Token
}

// SegmentKind records how a decoded segment was produced.
type SegmentKind int

const (
	// Literal segments are stored verbatim.
	Literal SegmentKind = iota
	// Encoded segments sit before a token that decoding turned into
	// a separator.
	Encoded
)

func (k SegmentKind) String() string {
	if k == Encoded {
		return "encoded"
	}
	return "literal"
}

// PathSegment is one element of a decoded key.
type PathSegment struct {
	Kind SegmentKind
	Name string
}

// Key is a parsed stored filename.
type Key struct {
	Raw      string
	Segments []PathSegment
}

// Parse splits a stored filename into its directory and file
// segments.
func Parse(raw string) Key {
	directory, name, found := strings.Cut(raw, Token)
	if !found {
		return Key{Raw: raw, Segments: []PathSegment{{Kind: Literal, Name: raw}}}
	}
	return Key{Raw: raw, Segments: []PathSegment{
		{Kind: Encoded, Name: directory},
		{Kind: Literal, Name: name},
	}}
}

// Path is the decoded path of the key.
func (k Key) Path() string {
	return Decode(k.Raw)
}

// Directory returns the directory segment, if the key has one.
func (k Key) Directory() (string, bool) {
	if len(k.Segments) < 2 || k.Segments[0].Kind != Encoded {
		return "", false
	}
	return k.Segments[0].Name, true
}

// Name returns the final segment.
func (k Key) Name() string {
	return k.Segments[len(k.Segments)-1].Name
}

// Ambiguous reports whether the key does not survive a round trip:
// a literal segment still carries the token, or a segment is empty.
func (k Key) Ambiguous() bool {
	for _, segment := range k.Segments {
		if segment.Name == "" || (segment.Kind == Literal && strings.Contains(segment.Name, Token)) {
			return true
		}
	}
	return false
}
