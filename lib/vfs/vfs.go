// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"time"
)

// FileType distinguishes files from directories.
type FileType int

const (
	TypeUnknown FileType = iota
	TypeFile
	TypeDirectory
)

func (t FileType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// FileStat describes one file or directory. Neither store tracks
// modification times per file; ModTime is the zero time unless a
// provider knows better.
type FileStat struct {
	Type    FileType
	Size    int64
	ModTime time.Time
}

// DirEntry is one child of a directory.
type DirEntry struct {
	Name string
	Type FileType
}

// FileSystem is implemented by each store provider. Every call is
// independent: a failure affects only the operation that returned it.
type FileSystem interface {
	Stat(ctx context.Context, uri URI) (FileStat, error)
	ReadDirectory(ctx context.Context, uri URI) ([]DirEntry, error)
	CreateDirectory(ctx context.Context, uri URI) error
	ReadFile(ctx context.Context, uri URI) ([]byte, error)

	// WriteFile creates or replaces the file at uri.
	WriteFile(ctx context.Context, uri URI, content []byte) error

	// Delete removes a file, or a directory together with everything
	// below it.
	Delete(ctx context.Context, uri URI) error

	// Rename moves a file or directory. It fails with ErrFileExists
	// when the target exists.
	Rename(ctx context.Context, from, to URI) error
}

// Copier is implemented by providers that can duplicate a file
// without a read-modify-write from the host.
type Copier interface {
	Copy(ctx context.Context, from, to URI) error
}

// Base is the version of a file a write is made against.
type Base struct {
	// Version identifies Content to the provider. It is empty for a
	// file that did not exist.
	Version string
	Content []byte
}

// BaseWriter is implemented by providers that detect remote changes
// made while a file was being edited. WriteFileFrom checks and merges
// against base rather than whatever the provider holds when the write
// arrives, and returns the version it wrote.
type BaseWriter interface {
	ReadBase(ctx context.Context, uri URI) (Base, error)
	WriteFileFrom(ctx context.Context, uri URI, base Base, content []byte) (Base, error)
}

// Position is a zero-based line and character offset. Characters are
// counted in runes.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a span inside one document of the same container.
type Location struct {
	Path  string `json:"path"`
	Range Range  `json:"range"`
}

// BackLink records that the document at Location refers to the
// document it is attached to.
type BackLink struct {
	Title       string   `json:"title"`
	Location    Location `json:"location"`
	LinePreview string   `json:"line_preview"`
}

// BackLinker is implemented by providers that index references
// between documents.
type BackLinker interface {
	BackLinks(ctx context.Context, uri URI) ([]BackLink, error)
}

// Session reports whether the user has authenticated against the
// remote. Mutations fail with ErrAuthRequired without a session.
type Session interface {
	SignedIn() bool
}
