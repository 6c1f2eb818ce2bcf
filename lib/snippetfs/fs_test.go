// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snippetfs

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/padfs/lib/clock"
	"github.com/bureau-foundation/padfs/lib/github"
	"github.com/bureau-foundation/padfs/lib/testutil"
	"github.com/bureau-foundation/padfs/lib/vfs"
	"github.com/bureau-foundation/padfs/lib/writequeue"
)

// fakeGists is an in-memory gist service. Stored values are exactly
// what the remote would hold, sentinel included.
type fakeGists struct {
	mu        sync.Mutex
	files     map[string]map[string]string
	truncated map[string]bool
	updates   []map[string]github.GistFileChange
	gets      int
	raws      int
	failWith  error
}

func newFakeGists(id string, files map[string]string) *fakeGists {
	return &fakeGists{
		files:     map[string]map[string]string{id: files},
		truncated: make(map[string]bool),
	}
}

func (f *fakeGists) gistLocked(id string) *github.Gist {
	gist := &github.Gist{ID: id, Files: make(map[string]github.GistFile)}
	for name, stored := range f.files[id] {
		file := github.GistFile{
			Filename: name,
			RawURL:   "https://raw.invalid/" + id + "/" + url.PathEscape(name),
			Size:     int64(len(stored)),
		}
		if f.truncated[name] {
			partial := stored[:len(stored)/2]
			file.Content = &partial
			file.Truncated = true
		} else {
			content := stored
			file.Content = &content
		}
		gist.Files[name] = file
	}
	return gist
}

func (f *fakeGists) GetGist(_ context.Context, id string) (*github.Gist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if _, ok := f.files[id]; !ok {
		return nil, &github.APIError{StatusCode: 404, Message: "Not Found"}
	}
	return f.gistLocked(id), nil
}

func (f *fakeGists) UpdateGist(_ context.Context, id string, changes map[string]github.GistFileChange) (*github.Gist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, changes)
	if f.failWith != nil {
		return nil, f.failWith
	}
	for name, change := range changes {
		if change.Delete {
			delete(f.files[id], name)
		} else {
			f.files[id][name] = change.Content
		}
	}
	return f.gistLocked(id), nil
}

func (f *fakeGists) GetRaw(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raws++
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	id, name, _ := strings.Cut(strings.TrimPrefix(parsed.Path, "/"), "/")
	stored, ok := f.files[id][name]
	if !ok {
		return nil, &github.APIError{StatusCode: 404}
	}
	return []byte(stored), nil
}

func (f *fakeGists) stored(id, name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.files[id][name]
	return value, ok
}

func (f *fakeGists) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type session bool

func (s session) SignedIn() bool { return bool(s) }

type harness struct {
	fs    *FileSystem
	api   *fakeGists
	clock *clock.FakeClock
}

func newHarness(t *testing.T, files map[string]string) *harness {
	t.Helper()
	api := newFakeGists("g1", files)
	fake := clock.Fake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	fs := New(Options{API: api, Session: session(true), Clock: fake})
	return &harness{fs: fs, api: api, clock: fake}
}

// mutate runs an operation that submits to the write queue, closes the
// debounce window once it has, and returns the operation's result.
func (h *harness) mutate(t *testing.T, op func(ctx context.Context) error) error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- op(context.Background()) }()
	h.clock.WaitForTimers(1)
	h.clock.Advance(writequeue.DefaultWindow)
	return testutil.RequireReceive(t, result, "queued operation")
}

func uri(path string) vfs.URI {
	return vfs.MustParse("gist://g1" + path)
}

func TestDirectoryEmulation(t *testing.T) {
	h := newHarness(t, map[string]string{
		"README.md":       "# pad",
		"notes---todo.md": "buy milk",
		"notes---done.md": "nothing",
		"a---b---c.md":    "unreachable",
	})
	ctx := context.Background()

	root, err := h.fs.ReadDirectory(ctx, uri("/"))
	if err != nil {
		t.Fatalf("ReadDirectory(/): %v", err)
	}
	wantRoot := []vfs.DirEntry{
		{Name: "README.md", Type: vfs.TypeFile},
		{Name: "notes", Type: vfs.TypeDirectory},
	}
	if !reflect.DeepEqual(root, wantRoot) {
		t.Errorf("root = %v, want %v", root, wantRoot)
	}

	notes, err := h.fs.ReadDirectory(ctx, uri("/notes"))
	if err != nil {
		t.Fatalf("ReadDirectory(/notes): %v", err)
	}
	wantNotes := []vfs.DirEntry{
		{Name: "done.md", Type: vfs.TypeFile},
		{Name: "todo.md", Type: vfs.TypeFile},
	}
	if !reflect.DeepEqual(notes, wantNotes) {
		t.Errorf("notes = %v, want %v", notes, wantNotes)
	}

	stat, err := h.fs.Stat(ctx, uri("/notes"))
	if err != nil || stat.Type != vfs.TypeDirectory {
		t.Errorf("Stat(/notes) = %+v, %v", stat, err)
	}
	stat, err = h.fs.Stat(ctx, uri("/notes/todo.md"))
	if err != nil || stat.Type != vfs.TypeFile || stat.Size != int64(len("buy milk")) {
		t.Errorf("Stat(/notes/todo.md) = %+v, %v", stat, err)
	}
	content, err := h.fs.ReadFile(ctx, uri("/notes/todo.md"))
	if err != nil || string(content) != "buy milk" {
		t.Errorf("ReadFile = %q, %v", content, err)
	}
	if h.api.gets != 1 {
		t.Errorf("GetGist calls = %d, want 1", h.api.gets)
	}
}

func TestLookupErrors(t *testing.T) {
	h := newHarness(t, map[string]string{"README.md": "x", "notes---a.md": "y"})
	ctx := context.Background()

	if _, err := h.fs.Stat(ctx, uri("/missing.md")); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Stat(missing) = %v", err)
	}
	if _, err := h.fs.ReadFile(ctx, uri("/notes")); !errors.Is(err, vfs.ErrIsDirectory) {
		t.Errorf("ReadFile(dir) = %v", err)
	}
	if _, err := h.fs.ReadDirectory(ctx, uri("/README.md")); !errors.Is(err, vfs.ErrNotDirectory) {
		t.Errorf("ReadDirectory(file) = %v", err)
	}
	if _, err := h.fs.Stat(ctx, uri("/x---y.md")); !errors.Is(err, vfs.ErrEncodingAmbiguity) {
		t.Errorf("Stat(token name) = %v", err)
	}
	if _, err := h.fs.Stat(ctx, vfs.MustParse("gist://nope/a.md")); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Stat(unknown gist) = %v", err)
	}
}

func TestEmptyContentSentinel(t *testing.T) {
	h := newHarness(t, map[string]string{"blank.md": EmptySentinel})
	ctx := context.Background()

	content, err := h.fs.ReadFile(ctx, uri("/blank.md"))
	if err != nil || len(content) != 0 {
		t.Fatalf("ReadFile(blank) = %q, %v", content, err)
	}
	if stat, _ := h.fs.Stat(ctx, uri("/blank.md")); stat.Size != 0 {
		t.Errorf("Size = %d, want 0", stat.Size)
	}

	err = h.mutate(t, func(ctx context.Context) error {
		return h.fs.WriteFile(ctx, uri("/new.md"), nil)
	})
	if err != nil {
		t.Fatalf("WriteFile(empty): %v", err)
	}
	if stored, _ := h.api.stored("g1", "new.md"); stored != EmptySentinel {
		t.Errorf("stored = %q, want sentinel", stored)
	}
	content, err = h.fs.ReadFile(ctx, uri("/new.md"))
	if err != nil || len(content) != 0 {
		t.Errorf("ReadFile(new) = %q, %v", content, err)
	}
}

func TestBinaryFilesBypassSentinel(t *testing.T) {
	h := newHarness(t, map[string]string{"logo.png": EmptySentinel})
	content, err := h.fs.ReadFile(context.Background(), uri("/logo.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != EmptySentinel {
		t.Errorf("binary content = %q, want the raw sentinel bytes", content)
	}
	if h.api.raws != 1 {
		t.Errorf("raw fetches = %d, want 1", h.api.raws)
	}
}

func TestTruncatedContentFetchedRaw(t *testing.T) {
	h := newHarness(t, map[string]string{"big.md": "0123456789"})
	h.api.truncated["big.md"] = true
	ctx := context.Background()

	for range 2 {
		content, err := h.fs.ReadFile(ctx, uri("/big.md"))
		if err != nil || string(content) != "0123456789" {
			t.Fatalf("ReadFile = %q, %v", content, err)
		}
	}
	if h.api.raws != 1 {
		t.Errorf("raw fetches = %d, want 1 (cached)", h.api.raws)
	}
}

func TestWriteFile(t *testing.T) {
	h := newHarness(t, map[string]string{"notes---a.md": "old"})
	ctx := context.Background()

	err := h.mutate(t, func(ctx context.Context) error {
		return h.fs.WriteFile(ctx, uri("/notes/a.md"), []byte("new"))
	})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if stored, _ := h.api.stored("g1", "notes---a.md"); stored != "new" {
		t.Errorf("stored = %q", stored)
	}
	content, err := h.fs.ReadFile(ctx, uri("/notes/a.md"))
	if err != nil || string(content) != "new" {
		t.Errorf("ReadFile after write = %q, %v", content, err)
	}
	if h.api.updates[0]["notes---a.md"].Content != "new" {
		t.Errorf("update = %v", h.api.updates[0])
	}
}

func TestWriteRejections(t *testing.T) {
	h := newHarness(t, map[string]string{"README.md": "x"})
	ctx := context.Background()

	tests := []struct {
		path string
		want error
	}{
		{"/a/b/c.md", vfs.ErrNotSupported},
		{"/x---y.md", vfs.ErrEncodingAmbiguity},
		{"/README.md/child.md", vfs.ErrNotDirectory},
		{"/", vfs.ErrIsDirectory},
	}
	for _, test := range tests {
		if err := h.fs.WriteFile(ctx, uri(test.path), []byte("z")); !errors.Is(err, test.want) {
			t.Errorf("WriteFile(%s) = %v, want %v", test.path, err, test.want)
		}
	}
	if err := h.fs.WriteFile(ctx, uri("/bin.txt"), []byte{0xff, 0xfe}); !errors.Is(err, vfs.ErrNotSupported) {
		t.Errorf("WriteFile(invalid utf-8) = %v", err)
	}
	if h.api.updateCount() != 0 {
		t.Errorf("rejected writes reached the remote")
	}
}

func TestMutationsRequireSession(t *testing.T) {
	api := newFakeGists("g1", map[string]string{"a.md": "x"})
	fs := New(Options{API: api, Session: session(false), Clock: clock.Fake(time.Now())})
	ctx := context.Background()

	checks := map[string]error{
		"write":  fs.WriteFile(ctx, uri("/a.md"), []byte("y")),
		"delete": fs.Delete(ctx, uri("/a.md")),
		"rename": fs.Rename(ctx, uri("/a.md"), uri("/b.md")),
		"copy":   fs.Copy(ctx, uri("/a.md"), uri("/b.md")),
	}
	for op, err := range checks {
		if !errors.Is(err, vfs.ErrAuthRequired) {
			t.Errorf("%s without session = %v", op, err)
		}
	}
	if content, err := fs.ReadFile(ctx, uri("/a.md")); err != nil || string(content) != "x" {
		t.Errorf("reads need no session: %q, %v", content, err)
	}
}

func TestRenameDirectoryIsOneUpdate(t *testing.T) {
	h := newHarness(t, map[string]string{
		"notes---a.md": "A",
		"notes---b.md": "B",
		"other.md":     "O",
	})

	err := h.mutate(t, func(ctx context.Context) error {
		return h.fs.Rename(ctx, uri("/notes"), uri("/archive"))
	})
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if h.api.updateCount() != 1 {
		t.Fatalf("updates = %d, want 1", h.api.updateCount())
	}
	update := h.api.updates[0]
	want := map[string]github.GistFileChange{
		"notes---a.md":   {Delete: true},
		"notes---b.md":   {Delete: true},
		"archive---a.md": {Content: "A"},
		"archive---b.md": {Content: "B"},
	}
	if !reflect.DeepEqual(update, want) {
		t.Errorf("update = %v, want %v", update, want)
	}
	if _, err := h.fs.Stat(context.Background(), uri("/notes")); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("old directory still present: %v", err)
	}
}

func TestRenameAndCopyFile(t *testing.T) {
	h := newHarness(t, map[string]string{"a.md": "A", "taken.md": "T"})
	ctx := context.Background()

	if err := h.fs.Rename(ctx, uri("/a.md"), uri("/taken.md")); !errors.Is(err, vfs.ErrFileExists) {
		t.Errorf("rename onto existing = %v", err)
	}

	err := h.mutate(t, func(ctx context.Context) error {
		return h.fs.Copy(ctx, uri("/a.md"), uri("/notes/copy.md"))
	})
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if stored, ok := h.api.stored("g1", "a.md"); !ok || stored != "A" {
		t.Errorf("copy removed source")
	}
	if stored, _ := h.api.stored("g1", "notes---copy.md"); stored != "A" {
		t.Errorf("copy stored %q", stored)
	}

	err = h.mutate(t, func(ctx context.Context) error {
		return h.fs.Rename(ctx, uri("/a.md"), uri("/b.md"))
	})
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, ok := h.api.stored("g1", "a.md"); ok {
		t.Error("rename kept source")
	}
	if stored, _ := h.api.stored("g1", "b.md"); stored != "A" {
		t.Errorf("rename stored %q", stored)
	}
	if h.api.updateCount() != 2 {
		t.Errorf("updates = %d, want 2", h.api.updateCount())
	}
}

func TestDeleteDirectory(t *testing.T) {
	h := newHarness(t, map[string]string{"notes---a.md": "A", "notes---b.md": "B", "keep.md": "K"})

	err := h.mutate(t, func(ctx context.Context) error {
		return h.fs.Delete(ctx, uri("/notes"))
	})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if h.api.updateCount() != 1 || len(h.api.updates[0]) != 2 {
		t.Fatalf("updates = %v", h.api.updates)
	}
	entries, err := h.fs.ReadDirectory(context.Background(), uri("/"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "keep.md" {
		t.Errorf("entries after delete = %v", entries)
	}
}

func TestFlushFailureReachesWriter(t *testing.T) {
	h := newHarness(t, map[string]string{"a.md": "A"})
	h.api.failWith = &github.APIError{StatusCode: 502, Message: "bad gateway"}

	err := h.mutate(t, func(ctx context.Context) error {
		return h.fs.WriteFile(ctx, uri("/a.md"), []byte("B"))
	})
	if !errors.Is(err, vfs.ErrTransient) {
		t.Fatalf("WriteFile = %v, want transient", err)
	}
	content, _ := h.fs.ReadFile(context.Background(), uri("/a.md"))
	if string(content) != "A" {
		t.Errorf("failed write changed cached content to %q", content)
	}
}
