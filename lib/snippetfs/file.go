// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snippetfs

import "github.com/bureau-foundation/padfs/lib/github"

// EmptySentinel stands in for empty text content, which gists refuse.
const EmptySentinel = "\u200B"

// RemoteFile is the cached state of one gist file, keyed by its
// stored (encoded) filename.
type RemoteFile struct {
	Key       string
	RawURL    string
	Size      int64
	Truncated bool

	// content is set once the full bytes are known, already
	// translated from the empty sentinel.
	content []byte
	loaded  bool
}

// fromGistFile builds the cache entry for a listed file. Inline
// content is used only when it is complete and the file is text.
func fromGistFile(key string, file github.GistFile) *RemoteFile {
	remote := &RemoteFile{
		Key:       key,
		RawURL:    file.RawURL,
		Size:      file.Size,
		Truncated: file.Truncated,
	}
	if file.Content != nil && !file.Truncated && !IsBinary(key) {
		remote.setContent(decodeText(*file.Content))
	}
	return remote
}

func (remote *RemoteFile) setContent(content []byte) {
	remote.content = content
	remote.loaded = true
	remote.Size = int64(len(content))
}

// decodeText maps stored text to file content.
func decodeText(stored string) []byte {
	if stored == EmptySentinel {
		return []byte{}
	}
	return []byte(stored)
}

// encodeText maps file content to stored text.
func encodeText(content []byte) string {
	if len(content) == 0 {
		return EmptySentinel
	}
	return string(content)
}

// storedValue is the text sent for key. Binary names bypass the
// sentinel.
func storedValue(key string, content []byte) string {
	if IsBinary(key) {
		return string(content)
	}
	return encodeText(content)
}

// loadedValue is the inverse of storedValue.
func loadedValue(key, stored string) []byte {
	if IsBinary(key) {
		return []byte(stored)
	}
	return decodeText(stored)
}
