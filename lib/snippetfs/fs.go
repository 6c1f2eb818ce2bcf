// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snippetfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/padfs/lib/clock"
	"github.com/bureau-foundation/padfs/lib/github"
	"github.com/bureau-foundation/padfs/lib/pathcodec"
	"github.com/bureau-foundation/padfs/lib/vfs"
	"github.com/bureau-foundation/padfs/lib/writequeue"
)

// API is the part of the gist client the file system uses.
type API interface {
	GetGist(ctx context.Context, id string) (*github.Gist, error)
	UpdateGist(ctx context.Context, id string, files map[string]github.GistFileChange) (*github.Gist, error)
	GetRaw(ctx context.Context, rawURL string) ([]byte, error)
}

// Options configures a FileSystem.
type Options struct {
	API API

	// Session gates mutations. Defaults to API when it implements
	// vfs.Session; otherwise every mutation is allowed.
	Session vfs.Session

	// Clock and Window drive the write queue's debounce gate.
	Clock  clock.Clock
	Window time.Duration

	// Observer receives every flushed batch.
	Observer writequeue.Observer

	Logger *slog.Logger
}

// FileSystem implements vfs.FileSystem and vfs.Copier over gists.
// The URI authority is the gist id.
type FileSystem struct {
	api     API
	session vfs.Session
	queue   *writequeue.Queue
	logger  *slog.Logger

	loads singleflight.Group

	mu     sync.Mutex
	stores map[string]*store
}

// store is the cached file list of one gist.
type store struct {
	description string
	files       map[string]*RemoteFile
}

var (
	_ vfs.FileSystem     = (*FileSystem)(nil)
	_ vfs.Copier         = (*FileSystem)(nil)
	_ writequeue.Flusher = (*FileSystem)(nil)
)

// New returns a FileSystem with its own write queue.
func New(options Options) *FileSystem {
	if options.API == nil {
		panic("snippetfs: Options.API is required")
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	session := options.Session
	if session == nil {
		if apiSession, ok := options.API.(vfs.Session); ok {
			session = apiSession
		}
	}
	fs := &FileSystem{
		api:     options.API,
		session: session,
		logger:  options.Logger,
		stores:  make(map[string]*store),
	}
	fs.queue = writequeue.New(writequeue.Options{
		Flusher:  fs,
		Clock:    options.Clock,
		Window:   options.Window,
		Observer: options.Observer,
		Logger:   options.Logger,
	})
	return fs
}

// Close flushes pending writes.
func (fs *FileSystem) Close(ctx context.Context) error {
	return fs.queue.Close(ctx)
}

// Flush sends pending writes now and waits for them.
func (fs *FileSystem) Flush(ctx context.Context) error {
	return fs.queue.Flush(ctx)
}

// Refresh drops the cached file list of gist id and reloads it.
func (fs *FileSystem) Refresh(ctx context.Context, id string) error {
	fs.mu.Lock()
	delete(fs.stores, id)
	fs.mu.Unlock()
	_, err := fs.load(ctx, id)
	return err
}

// load returns the cached store for id, fetching it on first use.
func (fs *FileSystem) load(ctx context.Context, id string) (*store, error) {
	fs.mu.Lock()
	cached, ok := fs.stores[id]
	fs.mu.Unlock()
	if ok {
		return cached, nil
	}

	value, err, _ := fs.loads.Do(id, func() (any, error) {
		gist, err := fs.api.GetGist(ctx, id)
		if err != nil {
			return nil, vfs.Classify(err)
		}
		loaded := storeFromGist(gist)
		fs.mu.Lock()
		defer fs.mu.Unlock()
		if existing, ok := fs.stores[id]; ok {
			return existing, nil
		}
		fs.stores[id] = loaded
		fs.logger.Debug("loaded snippet store", "store", id, "files", len(loaded.files))
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*store), nil
}

func storeFromGist(gist *github.Gist) *store {
	loaded := &store{description: gist.Description, files: make(map[string]*RemoteFile, len(gist.Files))}
	for key, file := range gist.Files {
		loaded.files[key] = fromGistFile(key, file)
	}
	return loaded
}

// target is a resolved path inside one store.
type target struct {
	storeID string
	rel     string
	// key is the encoded filename; empty for the store root.
	key string
}

// resolve validates uri and encodes its path. Paths nested more than
// one directory deep cannot be stored.
func resolve(uri vfs.URI) (target, error) {
	resolved := target{storeID: uri.Authority, rel: uri.Rel()}
	if resolved.rel == "" {
		return resolved, nil
	}
	if strings.Count(resolved.rel, "/") > 1 {
		return target{}, fmt.Errorf("%q is nested more than one directory deep: %w", resolved.rel, vfs.ErrNotSupported)
	}
	key, err := pathcodec.Encode(resolved.rel)
	if errors.Is(err, pathcodec.ErrAmbiguous) {
		return target{}, fmt.Errorf("%w: %v", vfs.ErrEncodingAmbiguity, err)
	}
	if err != nil {
		return target{}, err
	}
	resolved.key = key
	return resolved, nil
}

// node is what a resolved target names in a store.
type node struct {
	file     *RemoteFile
	children []string
}

func (n node) exists() bool      { return n.file != nil || len(n.children) > 0 }
func (n node) isDirectory() bool { return n.file == nil && len(n.children) > 0 }

// lookupLocked finds what t names. A file and a directory of the same
// name can both exist in a gist; the file wins. Caller holds fs.mu.
func (s *store) lookupLocked(t target) node {
	if t.key == "" {
		return node{children: s.sortedKeys()}
	}
	if file, ok := s.files[t.key]; ok {
		return node{file: file}
	}
	if strings.Contains(t.rel, "/") {
		return node{}
	}
	prefix := pathcodec.DirectoryPrefix(t.rel)
	var children []string
	for _, key := range s.sortedKeys() {
		if strings.HasPrefix(key, prefix) {
			children = append(children, key)
		}
	}
	return node{children: children}
}

func (s *store) sortedKeys() []string {
	keys := make([]string, 0, len(s.files))
	for key := range s.files {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (fs *FileSystem) lookup(ctx context.Context, uri vfs.URI) (target, node, error) {
	resolved, err := resolve(uri)
	if err != nil {
		return target{}, node{}, err
	}
	loaded, err := fs.load(ctx, resolved.storeID)
	if err != nil {
		return target{}, node{}, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	found := loaded.lookupLocked(resolved)
	if resolved.key == "" {
		// The root of a loaded store exists even when empty.
		return resolved, node{children: found.children}, nil
	}
	if !found.exists() {
		return resolved, found, vfs.ErrNotFound
	}
	return resolved, found, nil
}

func (fs *FileSystem) requireSession() error {
	if fs.session != nil && !fs.session.SignedIn() {
		return vfs.ErrAuthRequired
	}
	return nil
}

func (fs *FileSystem) Stat(ctx context.Context, uri vfs.URI) (vfs.FileStat, error) {
	resolved, found, err := fs.lookup(ctx, uri)
	if err != nil {
		return vfs.FileStat{}, vfs.Fail("stat", uri, err)
	}
	if resolved.key == "" || found.isDirectory() {
		return vfs.FileStat{Type: vfs.TypeDirectory}, nil
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return vfs.FileStat{Type: vfs.TypeFile, Size: found.file.Size}, nil
}

func (fs *FileSystem) ReadDirectory(ctx context.Context, uri vfs.URI) ([]vfs.DirEntry, error) {
	resolved, found, err := fs.lookup(ctx, uri)
	if err != nil {
		return nil, vfs.Fail("readdir", uri, err)
	}
	if found.file != nil {
		return nil, vfs.Fail("readdir", uri, vfs.ErrNotDirectory)
	}

	var entries []vfs.DirEntry
	seen := make(map[string]bool)
	for _, raw := range found.children {
		key := pathcodec.Parse(raw)
		if key.Ambiguous() {
			fs.logger.Warn("skipping stored filename that does not decode to a path",
				"store", resolved.storeID,
				"key", raw,
			)
			continue
		}
		directory, nested := key.Directory()
		switch {
		case resolved.key != "":
			entries = append(entries, vfs.DirEntry{Name: key.Name(), Type: vfs.TypeFile})
		case nested:
			if !seen[directory] {
				seen[directory] = true
				entries = append(entries, vfs.DirEntry{Name: directory, Type: vfs.TypeDirectory})
			}
		default:
			entries = append(entries, vfs.DirEntry{Name: raw, Type: vfs.TypeFile})
		}
	}
	return entries, nil
}

// CreateDirectory validates the path and otherwise does nothing: a
// directory appears once a file is written into it.
func (fs *FileSystem) CreateDirectory(ctx context.Context, uri vfs.URI) error {
	resolved, err := resolve(uri)
	if err != nil {
		return vfs.Fail("mkdir", uri, err)
	}
	if strings.Contains(resolved.rel, "/") {
		return vfs.Fail("mkdir", uri, fmt.Errorf("directories nest one level: %w", vfs.ErrNotSupported))
	}
	_, found, err := fs.lookup(ctx, uri)
	if err == nil && found.file != nil {
		return vfs.Fail("mkdir", uri, vfs.ErrFileExists)
	}
	if err != nil && !errors.Is(err, vfs.ErrNotFound) {
		return vfs.Fail("mkdir", uri, err)
	}
	return nil
}

func (fs *FileSystem) ReadFile(ctx context.Context, uri vfs.URI) ([]byte, error) {
	_, found, err := fs.lookup(ctx, uri)
	if err != nil {
		return nil, vfs.Fail("read", uri, err)
	}
	if found.file == nil {
		return nil, vfs.Fail("read", uri, vfs.ErrIsDirectory)
	}
	content, err := fs.content(ctx, found.file)
	if err != nil {
		return nil, vfs.Fail("read", uri, err)
	}
	return content, nil
}

// content returns a copy of a file's bytes, fetching them from the raw
// URL when the listing did not carry them.
func (fs *FileSystem) content(ctx context.Context, file *RemoteFile) ([]byte, error) {
	fs.mu.Lock()
	if file.loaded {
		content := append([]byte(nil), file.content...)
		fs.mu.Unlock()
		return content, nil
	}
	rawURL := file.RawURL
	fs.mu.Unlock()

	raw, err := fs.api.GetRaw(ctx, rawURL)
	if err != nil {
		return nil, vfs.Classify(err)
	}
	content := loadedValue(file.Key, string(raw))
	fs.mu.Lock()
	if !file.loaded {
		file.setContent(content)
	}
	fs.mu.Unlock()
	return append([]byte(nil), content...), nil
}

func (fs *FileSystem) WriteFile(ctx context.Context, uri vfs.URI, content []byte) error {
	if err := fs.requireSession(); err != nil {
		return vfs.Fail("write", uri, err)
	}
	resolved, found, err := fs.lookup(ctx, uri)
	if err != nil && !errors.Is(err, vfs.ErrNotFound) {
		return vfs.Fail("write", uri, err)
	}
	if resolved.key == "" || found.isDirectory() {
		return vfs.Fail("write", uri, vfs.ErrIsDirectory)
	}
	if err := fs.checkParent(ctx, uri); err != nil {
		return vfs.Fail("write", uri, err)
	}
	if !utf8.Valid(content) {
		return vfs.Fail("write", uri, fmt.Errorf("gists store text content only: %w", vfs.ErrNotSupported))
	}

	kind := writequeue.Create
	if found.file != nil {
		kind = writequeue.Change
	}
	op := writequeue.Op{Kind: kind, StoreID: resolved.storeID, Filename: resolved.key, Content: storedValue(resolved.key, content)}
	return vfs.Fail("write", uri, fs.queue.Enqueue(ctx, op))
}

// checkParent refuses to place a file under a name that is a file.
func (fs *FileSystem) checkParent(ctx context.Context, uri vfs.URI) error {
	parent := uri.Dir()
	if parent.Rel() == "" {
		return nil
	}
	_, found, err := fs.lookup(ctx, parent)
	if err == nil && found.file != nil {
		return vfs.ErrNotDirectory
	}
	return nil
}

func (fs *FileSystem) Delete(ctx context.Context, uri vfs.URI) error {
	if err := fs.requireSession(); err != nil {
		return vfs.Fail("delete", uri, err)
	}
	resolved, found, err := fs.lookup(ctx, uri)
	if err != nil {
		return vfs.Fail("delete", uri, err)
	}
	if resolved.key == "" {
		return vfs.Fail("delete", uri, fmt.Errorf("deleting a whole gist: %w", vfs.ErrNotSupported))
	}
	keys := found.children
	if found.file != nil {
		keys = []string{resolved.key}
	}
	ops := make([]writequeue.Op, 0, len(keys))
	for _, key := range keys {
		ops = append(ops, writequeue.Op{Kind: writequeue.Delete, StoreID: resolved.storeID, Filename: key})
	}
	return vfs.Fail("delete", uri, writequeue.Await(ctx, fs.queue.SubmitAll(ops...)...))
}

// move is one key to copy, and optionally remove, during a rename or
// copy.
type move struct {
	from *RemoteFile
	to   string
}

// plan lists the moves that take source onto destination. A directory
// moves every file below it.
func (fs *FileSystem) plan(ctx context.Context, op string, from, to vfs.URI) (string, []move, error) {
	source, found, err := fs.lookup(ctx, from)
	if err != nil {
		return "", nil, vfs.Fail(op, from, err)
	}
	if source.key == "" {
		return "", nil, vfs.Fail(op, from, vfs.ErrNotSupported)
	}
	destination, _, err := fs.lookup(ctx, to)
	if err == nil {
		return "", nil, vfs.Fail(op, to, vfs.ErrFileExists)
	}
	if err != nil && !errors.Is(err, vfs.ErrNotFound) {
		return "", nil, vfs.Fail(op, to, err)
	}
	if err := fs.checkParent(ctx, to); err != nil {
		return "", nil, vfs.Fail(op, to, err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if found.file != nil {
		return source.storeID, []move{{from: found.file, to: destination.key}}, nil
	}
	if strings.Contains(destination.rel, "/") {
		return "", nil, vfs.Fail(op, to, fmt.Errorf("directories nest one level: %w", vfs.ErrNotSupported))
	}
	loaded := fs.stores[source.storeID]
	var moves []move
	for _, key := range found.children {
		name := pathcodec.Parse(key).Name()
		moves = append(moves, move{from: loaded.files[key], to: pathcodec.DirectoryPrefix(destination.rel) + name})
	}
	return source.storeID, moves, nil
}

// Rename submits the deletes and creates of a move together, so one
// gist update carries the whole rename.
func (fs *FileSystem) Rename(ctx context.Context, from, to vfs.URI) error {
	if err := fs.requireSession(); err != nil {
		return vfs.Fail("rename", from, err)
	}
	return fs.transfer(ctx, "rename", from, to, true)
}

// Copy creates the destination and leaves the source in place.
func (fs *FileSystem) Copy(ctx context.Context, from, to vfs.URI) error {
	if err := fs.requireSession(); err != nil {
		return vfs.Fail("copy", from, err)
	}
	return fs.transfer(ctx, "copy", from, to, false)
}

func (fs *FileSystem) transfer(ctx context.Context, op string, from, to vfs.URI, removeSource bool) error {
	storeID, moves, err := fs.plan(ctx, op, from, to)
	if err != nil {
		return err
	}
	contents := make([][]byte, len(moves))
	for i, planned := range moves {
		contents[i], err = fs.content(ctx, planned.from)
		if err != nil {
			return vfs.Fail(op, from, err)
		}
		if !utf8.Valid(contents[i]) {
			return vfs.Fail(op, from, fmt.Errorf("%s is not text: %w", planned.from.Key, vfs.ErrNotSupported))
		}
	}
	var ops []writequeue.Op
	for i, planned := range moves {
		if removeSource {
			ops = append(ops, writequeue.Op{Kind: writequeue.Delete, StoreID: storeID, Filename: planned.from.Key})
		}
		ops = append(ops, writequeue.Op{
			Kind:     writequeue.Create,
			StoreID:  storeID,
			Filename: planned.to,
			Content:  storedValue(planned.to, contents[i]),
		})
	}
	return vfs.Fail(op, from, writequeue.Await(ctx, fs.queue.SubmitAll(ops...)...))
}

// FlushBatch sends one collapsed batch as a single gist update and
// adopts the file list the remote returns.
func (fs *FileSystem) FlushBatch(ctx context.Context, batch writequeue.Batch) error {
	changes := make(map[string]github.GistFileChange, len(batch.Files))
	for name, change := range batch.Files {
		changes[name] = github.GistFileChange{Content: change.Content, Delete: change.Deleted}
	}
	gist, err := fs.api.UpdateGist(ctx, batch.StoreID, changes)
	if err != nil {
		return vfs.Classify(err)
	}

	updated := storeFromGist(gist)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	previous := fs.stores[batch.StoreID]
	for key, file := range updated.files {
		if change, ok := batch.Files[key]; ok && !change.Deleted {
			file.setContent(loadedValue(key, change.Content))
			continue
		}
		if file.loaded || previous == nil {
			continue
		}
		if old, ok := previous.files[key]; ok && old.loaded {
			file.setContent(old.content)
		}
	}
	fs.stores[batch.StoreID] = updated
	return nil
}
