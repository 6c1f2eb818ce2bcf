// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// User is the subset of a GitHub account the client reads.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// Repository is a GitHub repository.
type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Owner         User   `json:"owner"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

// Tree is a git tree. Recursive reads list every entry in the
// repository; Truncated is set when GitHub cut the listing short.
type Tree struct {
	SHA       string      `json:"sha"`
	Truncated bool        `json:"truncated"`
	Entries   []TreeEntry `json:"tree"`
}

// TreeEntry is one entry of a tree listing. Type is "blob", "tree" or
// "commit" (submodule).
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size,omitempty"`
}

// Blob is a git blob as returned by the git data API.
type Blob struct {
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Decode returns the blob's bytes.
func (blob *Blob) Decode() ([]byte, error) {
	return decodeContent(blob.Content, blob.Encoding)
}

// FileContent is a file read through the contents API.
type FileContent struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Decode returns the file's bytes.
func (content *FileContent) Decode() ([]byte, error) {
	return decodeContent(content.Content, content.Encoding)
}

func decodeContent(content, encoding string) ([]byte, error) {
	switch encoding {
	case "base64":
		// GitHub wraps base64 at 60 columns.
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("github: decoding base64 content: %w", err)
		}
		return decoded, nil
	case "", "utf-8":
		return []byte(content), nil
	default:
		return nil, fmt.Errorf("github: unsupported content encoding %q", encoding)
	}
}

// Ref is a git reference.
type Ref struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA  string `json:"sha"`
		Type string `json:"type"`
	} `json:"object"`
}

// Commit is a git commit object.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Tree    struct {
		SHA string `json:"sha"`
	} `json:"tree"`
	Parents []struct {
		SHA string `json:"sha"`
	} `json:"parents"`
	Author *CommitIdentity `json:"author,omitempty"`
}

// CommitIdentity is the author or committer of a commit.
type CommitIdentity struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// Gist is a GitHub gist. Files is keyed by filename.
type Gist struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	HTMLURL     string              `json:"html_url"`
	Owner       *User               `json:"owner,omitempty"`
	Files       map[string]GistFile `json:"files"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Truncated   bool                `json:"truncated"`
}

// GistFile is one file of a gist. Content is absent from list
// responses and cut short when Truncated is set; RawURL always serves
// the full bytes.
type GistFile struct {
	Filename  string  `json:"filename"`
	Type      string  `json:"type"`
	Language  string  `json:"language"`
	RawURL    string  `json:"raw_url"`
	Size      int64   `json:"size"`
	Truncated bool    `json:"truncated"`
	Content   *string `json:"content,omitempty"`
}
