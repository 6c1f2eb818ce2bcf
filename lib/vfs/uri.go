// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// URI schemes served by padfs.
const (
	SchemeGist = "gist"
	SchemeRepo = "repo"
)

// URI identifies a file or directory inside one remote container.
// Path is always absolute and slash-separated; the root of a container
// is "/".
type URI struct {
	Scheme    string
	Authority string
	Path      string
	Query     url.Values
}

// Parse parses "scheme://authority/path?query".
func Parse(raw string) (URI, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return URI{}, fmt.Errorf("parsing uri %q: %w", raw, err)
	}
	if parsed.Scheme == "" {
		return URI{}, fmt.Errorf("parsing uri %q: missing scheme", raw)
	}
	if parsed.Host == "" {
		return URI{}, fmt.Errorf("parsing uri %q: missing authority", raw)
	}
	return URI{
		Scheme:    parsed.Scheme,
		Authority: parsed.Host,
		Path:      clean(parsed.Path),
		Query:     parsed.Query(),
	}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string) URI {
	uri, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return uri
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

func (u URI) String() string {
	value := url.URL{Scheme: u.Scheme, Host: u.Authority, Path: clean(u.Path)}
	if len(u.Query) > 0 {
		value.RawQuery = u.Query.Encode()
	}
	return value.String()
}

// Rel returns the path without its leading slash. The root is "".
func (u URI) Rel() string {
	return strings.TrimPrefix(clean(u.Path), "/")
}

// Base returns the last path element, or "" at the root.
func (u URI) Base() string {
	rel := u.Rel()
	if rel == "" {
		return ""
	}
	return path.Base(rel)
}

// Join returns the URI of name inside u.
func (u URI) Join(name string) URI {
	joined := u
	joined.Path = clean(path.Join(clean(u.Path), name))
	return joined
}

// Dir returns the URI of the directory containing u.
func (u URI) Dir() URI {
	parent := u
	parent.Path = clean(path.Dir(clean(u.Path)))
	return parent
}

// WithPath returns u with its path replaced by p.
func (u URI) WithPath(p string) URI {
	moved := u
	moved.Path = clean(p)
	return moved
}

// SameContainer reports whether u and other address the same remote
// container: same scheme, authority and query.
func (u URI) SameContainer(other URI) bool {
	return u.Scheme == other.Scheme &&
		u.Authority == other.Authority &&
		u.Query.Encode() == other.Query.Encode()
}
