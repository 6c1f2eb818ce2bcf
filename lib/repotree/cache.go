// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repotree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/padfs/lib/backlink"
	"github.com/bureau-foundation/padfs/lib/clock"
	"github.com/bureau-foundation/padfs/lib/github"
	"github.com/bureau-foundation/padfs/lib/vfs"
)

// Defaults for Options.
const (
	DefaultRefreshInterval   = time.Minute
	DefaultWriteRefreshDelay = 2 * time.Second
	DefaultWikiMarker        = ".wiki"
	DefaultFetchLimit        = 8
)

// ErrNotOpen is returned for repositories that were never opened or
// have been closed.
var ErrNotOpen = fmt.Errorf("repository not open: %w", vfs.ErrNotFound)

// Source is the part of the repository client the cache reads from.
type Source interface {
	GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error)
	GetTree(ctx context.Context, owner, repo, treeish, etag string) (*github.Tree, string, error)
	GetBlob(ctx context.Context, owner, repo, sha string) (*github.Blob, error)
}

// Options configures a Cache.
type Options struct {
	Source Source
	Clock  clock.Clock

	// RefreshInterval is the period of the background refresh of each
	// open repository.
	RefreshInterval time.Duration

	// WriteRefreshDelay is how long ScheduleRefresh waits, giving the
	// remote time to make a just-written commit visible.
	WriteRefreshDelay time.Duration

	// WikiMarker is the file whose presence marks a repository as a
	// wiki.
	WikiMarker string

	// FetchLimit bounds parallel blob fetches during a backlink pass.
	FetchLimit int

	// OnRefresh, if set, observes every completed refresh.
	OnRefresh func(id RepoID, result RefreshResult, duration time.Duration, err error)

	Logger *slog.Logger
}

// Repository describes one open repository.
type Repository struct {
	ID            RepoID
	DefaultBranch string
	Wiki          bool

	// LatestCommit is the head commit written through the cache, or
	// empty until the first local commit.
	LatestCommit string

	TreeSHA   string
	Truncated bool

	// Generation increases with every tree replacement.
	Generation uint64

	// IndexGeneration increases with every backlink pass.
	IndexGeneration uint64
}

// RefreshResult reports what a refresh did.
type RefreshResult struct {
	// Changed is false when the remote tree was not modified.
	Changed bool

	// Reindexed is set when the backlink index was rebuilt.
	Reindexed bool

	// Links is the number of resolved references after a rebuild.
	Links int
}

// TreeEvent announces a tree replacement or a backlink rebuild.
type TreeEvent struct {
	ID         RepoID
	Generation uint64
	Reindexed  bool
}

// Cache holds the trees of open repositories.
type Cache struct {
	source            Source
	clock             clock.Clock
	refreshInterval   time.Duration
	writeRefreshDelay time.Duration
	wikiMarker        string
	fetchLimit        int
	onRefresh         func(RepoID, RefreshResult, time.Duration, error)
	logger            *slog.Logger

	refreshes singleflight.Group
	blobs     singleflight.Group

	mu          sync.Mutex
	repos       map[RepoID]*handle
	subscribers map[int]func(TreeEvent)
	nextSub     int
}

// handle is the cache's state for one open repository.
type handle struct {
	repo     Repository
	nameWiki bool
	tree     *fileTree
	index    *backlink.Index

	// indexStale is set by local writes to markdown pages, whose new
	// shas a later refresh would not see as changed.
	indexStale bool

	refreshScheduled bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an empty Cache. Options.Source is required.
func New(options Options) *Cache {
	if options.Source == nil {
		panic("repotree: Options.Source is required")
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.RefreshInterval <= 0 {
		options.RefreshInterval = DefaultRefreshInterval
	}
	if options.WriteRefreshDelay <= 0 {
		options.WriteRefreshDelay = DefaultWriteRefreshDelay
	}
	if options.WikiMarker == "" {
		options.WikiMarker = DefaultWikiMarker
	}
	if options.FetchLimit <= 0 {
		options.FetchLimit = DefaultFetchLimit
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Cache{
		source:            options.Source,
		clock:             options.Clock,
		refreshInterval:   options.RefreshInterval,
		writeRefreshDelay: options.WriteRefreshDelay,
		wikiMarker:        options.WikiMarker,
		fetchLimit:        options.FetchLimit,
		onRefresh:         options.OnRefresh,
		logger:            options.Logger,
		repos:             make(map[RepoID]*handle),
		subscribers:       make(map[int]func(TreeEvent)),
	}
}

// Open loads a repository and starts its refresh loop. An empty
// branch selects the default branch. Opening an open repository
// returns it unchanged.
func (c *Cache) Open(ctx context.Context, owner, name, branch string) (Repository, error) {
	metadata, err := c.source.GetRepository(ctx, owner, name)
	if err != nil {
		return Repository{}, fmt.Errorf("opening %s/%s: %w", owner, name, vfs.Classify(err))
	}
	if branch == "" {
		branch = metadata.DefaultBranch
	}
	id := RepoID{Owner: owner, Name: name, Branch: branch}

	c.mu.Lock()
	if existing, ok := c.repos[id]; ok {
		repo := existing.snapshotLocked()
		c.mu.Unlock()
		return repo, nil
	}
	opened := &handle{
		repo:     Repository{ID: id, DefaultBranch: metadata.DefaultBranch},
		nameWiki: strings.Contains(strings.ToLower(name), "wiki"),
		done:     make(chan struct{}),
	}
	opened.repo.Wiki = opened.nameWiki
	c.repos[id] = opened
	c.mu.Unlock()

	if _, err := c.Refresh(ctx, id, true); err != nil {
		c.mu.Lock()
		delete(c.repos, id)
		c.mu.Unlock()
		return Repository{}, fmt.Errorf("opening %s: %w", id, err)
	}

	loopContext, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	opened.cancel = cancel
	repo := opened.snapshotLocked()
	c.mu.Unlock()
	go c.refreshLoop(loopContext, id, opened.done)

	c.logger.Info("opened repository", "repository", id.String(), "wiki", repo.Wiki)
	return repo, nil
}

func (h *handle) generation(c *Cache) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h.tree == nil {
		return 0
	}
	return h.tree.generation
}

func (h *handle) snapshotLocked() Repository {
	repo := h.repo
	if h.tree != nil {
		repo.TreeSHA = h.tree.sha
		repo.Truncated = h.tree.truncated
		repo.Generation = h.tree.generation
	}
	return repo
}

func (c *Cache) refreshLoop(ctx context.Context, id RepoID, done chan struct{}) {
	defer close(done)
	ticker := c.clock.NewTicker(c.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Refresh(ctx, id, false); err != nil && ctx.Err() == nil {
				c.logger.Warn("periodic tree refresh failed",
					"repository", id.String(),
					"transient", errors.Is(err, vfs.ErrTransient),
					"error", err,
				)
			}
		}
	}
}

// Close stops the repository's refresh loop and forgets its tree.
func (c *Cache) Close(id RepoID) {
	c.mu.Lock()
	closing, ok := c.repos[id]
	delete(c.repos, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	if closing.cancel != nil {
		closing.cancel()
		<-closing.done
	}
	c.logger.Info("closed repository", "repository", id.String())
}

// CloseAll closes every open repository.
func (c *Cache) CloseAll() {
	for _, repo := range c.Repositories() {
		c.Close(repo.ID)
	}
}

// Repositories lists the open repositories.
func (c *Cache) Repositories() []Repository {
	c.mu.Lock()
	defer c.mu.Unlock()
	repos := make([]Repository, 0, len(c.repos))
	for _, h := range c.repos {
		repos = append(repos, h.snapshotLocked())
	}
	return repos
}

// Repository returns the state of an open repository.
func (c *Cache) Repository(id RepoID) (Repository, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.repos[id]
	if !ok {
		return Repository{}, false
	}
	return h.snapshotLocked(), true
}

// Resolve finds the open repository for owner and name on branch, or
// on its default branch when branch is empty.
func (c *Cache) Resolve(owner, name, branch string) (RepoID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, h := range c.repos {
		if id.Owner != owner || id.Name != name {
			continue
		}
		if branch == id.Branch || (branch == "" && id.Branch == h.repo.DefaultBranch) {
			return id, true
		}
	}
	return RepoID{}, false
}

// Refresh re-reads the repository tree. Unless forceFull is set the
// read is conditional on the cached tree's ETag.
func (c *Cache) Refresh(ctx context.Context, id RepoID, forceFull bool) (RefreshResult, error) {
	key := id.String()
	if forceFull {
		key += "#full"
	}
	value, err, _ := c.refreshes.Do(key, func() (any, error) {
		started := c.clock.Now()
		result, err := c.refresh(ctx, id, forceFull)
		if c.onRefresh != nil {
			c.onRefresh(id, result, c.clock.Now().Sub(started), err)
		}
		return result, err
	})
	if err != nil {
		return RefreshResult{}, err
	}
	return value.(RefreshResult), nil
}

func (c *Cache) refresh(ctx context.Context, id RepoID, forceFull bool) (RefreshResult, error) {
	c.mu.Lock()
	h, ok := c.repos[id]
	if !ok {
		c.mu.Unlock()
		return RefreshResult{}, ErrNotOpen
	}
	etag := ""
	if !forceFull && h.tree != nil {
		etag = h.tree.etag
	}
	c.mu.Unlock()

	remote, nextETag, err := c.source.GetTree(ctx, id.Owner, id.Name, id.Branch, etag)
	if errors.Is(err, github.ErrNotModified) {
		c.logger.Debug("tree unchanged", "repository", id.String())
		c.mu.Lock()
		stale := h.repo.Wiki && h.indexStale
		c.mu.Unlock()
		if !stale {
			return RefreshResult{}, nil
		}
		links, applied, err := c.reindex(ctx, id, h)
		if err != nil {
			return RefreshResult{}, fmt.Errorf("indexing backlinks of %s: %w", id, err)
		}
		result := RefreshResult{Reindexed: applied, Links: links}
		if applied {
			c.notify(TreeEvent{ID: id, Generation: h.generation(c), Reindexed: true})
		}
		return result, nil
	}
	if err != nil {
		return RefreshResult{}, vfs.Classify(err)
	}

	c.mu.Lock()
	if current, ok := c.repos[id]; !ok || current != h {
		c.mu.Unlock()
		return RefreshResult{}, ErrNotOpen
	}
	next := buildTree(remote, nextETag, h.tree)
	reindex := markdownChanged(h.tree, next) || h.indexStale || h.index == nil
	if h.tree != nil {
		next.generation = h.tree.generation + 1
	} else {
		next.generation = 1
	}
	h.tree = next
	_, marked := next.entries[c.wikiMarker]
	h.repo.Wiki = h.nameWiki || marked
	wiki := h.repo.Wiki
	generation := next.generation
	c.mu.Unlock()

	c.logger.Info("tree replaced",
		"repository", id.String(),
		"entries", len(next.entries),
		"truncated", next.truncated,
	)
	if next.truncated {
		c.logger.Warn("remote truncated the tree listing", "repository", id.String())
	}

	result := RefreshResult{Changed: true}
	if wiki && reindex {
		links, applied, err := c.reindex(ctx, id, h)
		if err != nil {
			c.notify(TreeEvent{ID: id, Generation: generation})
			return result, fmt.Errorf("indexing backlinks of %s: %w", id, err)
		}
		result.Reindexed = applied
		result.Links = links
	}
	c.notify(TreeEvent{ID: id, Generation: generation, Reindexed: result.Reindexed})
	return result, nil
}

// Subscribe registers fn for every TreeEvent. The returned function
// removes the subscription. fn runs on the refreshing goroutine and
// must not block.
func (c *Cache) Subscribe(fn func(TreeEvent)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Cache) notify(event TreeEvent) {
	c.mu.Lock()
	listeners := make([]func(TreeEvent), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(event)
	}
}

// ScheduleRefresh refreshes the repository once WriteRefreshDelay has
// passed. Calls made while one is pending are absorbed by it.
func (c *Cache) ScheduleRefresh(id RepoID) {
	c.mu.Lock()
	h, ok := c.repos[id]
	if !ok || h.refreshScheduled {
		c.mu.Unlock()
		return
	}
	h.refreshScheduled = true
	c.mu.Unlock()

	c.clock.AfterFunc(c.writeRefreshDelay, func() {
		c.mu.Lock()
		h.refreshScheduled = false
		c.mu.Unlock()
		if _, err := c.Refresh(context.Background(), id, false); err != nil {
			c.logger.Warn("refresh after write failed", "repository", id.String(), "error", err)
		}
	})
}
