// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repofs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/bureau-foundation/padfs/lib/github"
	"github.com/bureau-foundation/padfs/lib/merge"
	"github.com/bureau-foundation/padfs/lib/repotree"
	"github.com/bureau-foundation/padfs/lib/vfs"
)

// API is the part of the repository client the file system writes
// through.
type API interface {
	GetBlob(ctx context.Context, owner, repo, sha string) (*github.Blob, error)
	GetContents(ctx context.Context, owner, repo, path, ref string) (*github.FileContent, error)
	PutContents(ctx context.Context, owner, repo, path string, request github.UpdateFileRequest) (*github.UpdateFileResponse, error)
	GetRef(ctx context.Context, owner, repo, ref string) (*github.Ref, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*github.Commit, error)
	CreateTree(ctx context.Context, owner, repo string, request github.CreateTreeRequest) (*github.Tree, error)
	CreateCommit(ctx context.Context, owner, repo string, request github.CreateCommitRequest) (*github.Commit, error)
	UpdateRef(ctx context.Context, owner, repo, ref, sha string, force bool) (*github.Ref, error)
}

// Options configures a FileSystem.
type Options struct {
	API   API
	Cache *repotree.Cache

	// Session gates mutations. Defaults to API when it implements
	// vfs.Session.
	Session vfs.Session

	// Resolver merges writes made against a stale blob. Defaults to a
	// resolver with default options.
	Resolver *merge.Resolver

	Logger *slog.Logger
}

// FileSystem implements vfs.FileSystem and vfs.BackLinker over the
// repositories open in a repotree.Cache.
type FileSystem struct {
	api      API
	cache    *repotree.Cache
	session  vfs.Session
	resolver *merge.Resolver
	logger   *slog.Logger

	mu sync.Mutex

	// read holds the blob sha each path was last read or written at. A
	// WriteFile is checked against it rather than the current tree.
	read map[readKey]string
}

type readKey struct {
	id   repotree.RepoID
	path string
}

var (
	_ vfs.FileSystem = (*FileSystem)(nil)
	_ vfs.BackLinker = (*FileSystem)(nil)
	_ vfs.BaseWriter = (*FileSystem)(nil)
)

// New returns a FileSystem. Options.API and Options.Cache are
// required.
func New(options Options) *FileSystem {
	if options.API == nil || options.Cache == nil {
		panic("repofs: Options.API and Options.Cache are required")
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Session == nil {
		if session, ok := options.API.(vfs.Session); ok {
			options.Session = session
		}
	}
	if options.Resolver == nil {
		options.Resolver = merge.NewResolver(merge.Options{Logger: options.Logger})
	}
	return &FileSystem{
		api:      options.API,
		cache:    options.Cache,
		session:  options.Session,
		resolver: options.Resolver,
		logger:   options.Logger,
		read:     make(map[readKey]string),
	}
}

// URI returns the URI of p in repository owner/name. An empty branch
// addresses the default branch.
func URI(owner, name, branch, p string) vfs.URI {
	uri := vfs.URI{Scheme: vfs.SchemeRepo, Authority: owner}.WithPath(path.Join("/", name, p))
	if branch != "" {
		uri.Query = url.Values{"branch": {branch}}
	}
	return uri
}

// target is a resolved URI. An empty name addresses the owner level,
// which lists the owner's open repositories.
type target struct {
	owner string
	name  string
	id    repotree.RepoID
	path  string
}

func (fs *FileSystem) resolve(uri vfs.URI) (target, error) {
	if uri.Scheme != vfs.SchemeRepo {
		return target{}, fmt.Errorf("scheme %q: %w", uri.Scheme, vfs.ErrNotSupported)
	}
	resolved := target{owner: uri.Authority}
	resolved.name, resolved.path, _ = strings.Cut(uri.Rel(), "/")
	if resolved.name == "" {
		return resolved, nil
	}
	id, ok := fs.cache.Resolve(resolved.owner, resolved.name, uri.Query.Get("branch"))
	if !ok {
		return target{}, repotree.ErrNotOpen
	}
	resolved.id = id
	return resolved, nil
}

func (fs *FileSystem) requireSession() error {
	if fs.session != nil && !fs.session.SignedIn() {
		return vfs.ErrAuthRequired
	}
	return nil
}

// ownerRepositories lists the open repositories of owner by name.
func (fs *FileSystem) ownerRepositories(owner string) []vfs.DirEntry {
	seen := make(map[string]bool)
	var entries []vfs.DirEntry
	for _, repo := range fs.cache.Repositories() {
		if repo.ID.Owner != owner || seen[repo.ID.Name] {
			continue
		}
		seen[repo.ID.Name] = true
		entries = append(entries, vfs.DirEntry{Name: repo.ID.Name, Type: vfs.TypeDirectory})
	}
	return entries
}

func fileType(kind repotree.EntryKind) vfs.FileType {
	if kind == repotree.KindTree {
		return vfs.TypeDirectory
	}
	return vfs.TypeFile
}

func (fs *FileSystem) Stat(ctx context.Context, uri vfs.URI) (vfs.FileStat, error) {
	resolved, err := fs.resolve(uri)
	if err != nil {
		return vfs.FileStat{}, vfs.Fail("stat", uri, err)
	}
	if resolved.name == "" {
		if len(fs.ownerRepositories(resolved.owner)) == 0 {
			return vfs.FileStat{}, vfs.Fail("stat", uri, vfs.ErrNotFound)
		}
		return vfs.FileStat{Type: vfs.TypeDirectory}, nil
	}
	entry, err := fs.cache.Entry(resolved.id, resolved.path)
	if err != nil {
		return vfs.FileStat{}, vfs.Fail("stat", uri, err)
	}
	return vfs.FileStat{Type: fileType(entry.Kind), Size: entry.Size}, nil
}

func (fs *FileSystem) ReadDirectory(ctx context.Context, uri vfs.URI) ([]vfs.DirEntry, error) {
	resolved, err := fs.resolve(uri)
	if err != nil {
		return nil, vfs.Fail("readdir", uri, err)
	}
	if resolved.name == "" {
		return fs.ownerRepositories(resolved.owner), nil
	}
	children, err := fs.cache.Children(resolved.id, resolved.path)
	if err != nil {
		return nil, vfs.Fail("readdir", uri, err)
	}
	entries := make([]vfs.DirEntry, len(children))
	for i, child := range children {
		entries[i] = vfs.DirEntry{Name: child.Name(), Type: fileType(child.Kind)}
	}
	return entries, nil
}

// CreateDirectory does nothing for a valid path: git has no empty
// directories, and one appears as soon as a file is written below it.
func (fs *FileSystem) CreateDirectory(ctx context.Context, uri vfs.URI) error {
	resolved, err := fs.resolve(uri)
	if err != nil {
		return vfs.Fail("mkdir", uri, err)
	}
	if resolved.name == "" {
		return vfs.Fail("mkdir", uri, vfs.ErrNotSupported)
	}
	entry, err := fs.cache.Entry(resolved.id, resolved.path)
	if err == nil && entry.Kind == repotree.KindBlob {
		return vfs.Fail("mkdir", uri, vfs.ErrFileExists)
	}
	if err != nil && !errors.Is(err, vfs.ErrNotFound) {
		return vfs.Fail("mkdir", uri, err)
	}
	return nil
}

func (fs *FileSystem) ReadFile(ctx context.Context, uri vfs.URI) ([]byte, error) {
	base, err := fs.ReadBase(ctx, uri)
	return base.Content, err
}

// ReadBase returns the file's content with its blob sha as the
// version.
func (fs *FileSystem) ReadBase(ctx context.Context, uri vfs.URI) (vfs.Base, error) {
	resolved, err := fs.resolve(uri)
	if err != nil {
		return vfs.Base{}, vfs.Fail("read", uri, err)
	}
	if resolved.name == "" {
		return vfs.Base{}, vfs.Fail("read", uri, vfs.ErrIsDirectory)
	}
	content, sha, err := fs.cache.Blob(ctx, resolved.id, resolved.path)
	if err != nil {
		return vfs.Base{}, vfs.Fail("read", uri, err)
	}
	fs.remember(resolved, sha)
	return vfs.Base{Version: sha, Content: append([]byte(nil), content...)}, nil
}

func (fs *FileSystem) remember(resolved target, sha string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.read[readKey{resolved.id, resolved.path}] = sha
}

// lastRead returns the sha p was last read or written at.
func (fs *FileSystem) lastRead(resolved target) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	sha, ok := fs.read[readKey{resolved.id, resolved.path}]
	return sha, ok
}

// forgetReads drops the read versions at p and below it. With to
// set, they move there instead.
func (fs *FileSystem) forgetReads(id repotree.RepoID, p, to string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	prefix := p + "/"
	moved := make(map[readKey]string)
	for key, sha := range fs.read {
		if key.id != id || (key.path != p && !strings.HasPrefix(key.path, prefix)) {
			continue
		}
		delete(fs.read, key)
		if to != "" {
			moved[readKey{id, to + key.path[len(p):]}] = sha
		}
	}
	for key, sha := range moved {
		fs.read[key] = sha
	}
}

func (fs *FileSystem) BackLinks(ctx context.Context, uri vfs.URI) ([]vfs.BackLink, error) {
	resolved, err := fs.resolve(uri)
	if err != nil {
		return nil, vfs.Fail("backlinks", uri, err)
	}
	if resolved.name == "" {
		return nil, nil
	}
	entry, err := fs.cache.Entry(resolved.id, resolved.path)
	if err != nil {
		return nil, vfs.Fail("backlinks", uri, err)
	}
	return entry.BackLinks, nil
}
