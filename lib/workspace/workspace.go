// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace assembles the padfs file systems from a
// configuration: one API client, the snippet store provider, the
// repository tree cache and the repository provider, all behind a
// vfs.Router.
//
// Managed repositories are recorded in a state file so they reopen
// on the next start. [Workspace.Start] opens them; a repository that
// fails to open is logged and skipped so one unreachable repository
// does not keep the rest from mounting.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/bureau-foundation/padfs/lib/clock"
	"github.com/bureau-foundation/padfs/lib/config"
	"github.com/bureau-foundation/padfs/lib/github"
	"github.com/bureau-foundation/padfs/lib/merge"
	"github.com/bureau-foundation/padfs/lib/metrics"
	"github.com/bureau-foundation/padfs/lib/repofs"
	"github.com/bureau-foundation/padfs/lib/repotree"
	"github.com/bureau-foundation/padfs/lib/snippetfs"
	"github.com/bureau-foundation/padfs/lib/state"
	"github.com/bureau-foundation/padfs/lib/vfs"
	"github.com/bureau-foundation/padfs/lib/writequeue"
)

// Options carries the process-level collaborators. Every field is
// optional.
type Options struct {
	// HTTPClient is passed to the API client.
	HTTPClient *http.Client

	// Clock drives debounce windows and refresh timers. Defaults to
	// clock.Real().
	Clock clock.Clock

	// UserAgent identifies the process to the API.
	UserAgent string

	// Metrics, when set, observes queue flushes, tree refreshes and
	// merges.
	Metrics *metrics.Metrics

	Logger *slog.Logger
}

// Workspace owns the wired file systems.
type Workspace struct {
	Client   *github.Client
	Snippets *snippetfs.FileSystem
	Trees    *repotree.Cache
	Repos    *repofs.FileSystem
	Router   *vfs.Router

	gists       []string
	state       *state.Store
	unsubscribe func()
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New builds a Workspace from a validated configuration. Nothing is
// read from the remote until Start.
func New(cfg *config.Config, options Options) (*Workspace, error) {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	token, err := cfg.Token()
	if err != nil {
		return nil, err
	}
	client, err := github.NewClient(github.Config{
		BaseURL:           cfg.GitHub.BaseURL,
		Token:             token,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		Burst:             cfg.GitHub.Burst,
		HTTPClient:        options.HTTPClient,
		Clock:             options.Clock,
		UserAgent:         options.UserAgent,
		Logger:            options.Logger.With("component", "github"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	var (
		onFlush   writequeue.Observer
		onRefresh func(repotree.RepoID, repotree.RefreshResult, time.Duration, error)
		onMerge   func(merge.Outcome)
	)
	if options.Metrics != nil {
		onFlush = options.Metrics.ObserveFlush
		onRefresh = options.Metrics.ObserveRefresh
		onMerge = options.Metrics.ObserveMerge
	}

	snippets := snippetfs.New(snippetfs.Options{
		API:      client,
		Clock:    options.Clock,
		Window:   cfg.Snippets.Debounce.Std(),
		Observer: onFlush,
		Logger:   options.Logger.With("component", "snippetfs"),
	})
	trees := repotree.New(repotree.Options{
		Source:            client,
		Clock:             options.Clock,
		RefreshInterval:   cfg.Repositories.RefreshInterval.Std(),
		WriteRefreshDelay: cfg.Repositories.WriteRefreshDelay.Std(),
		WikiMarker:        cfg.Repositories.WikiMarker,
		FetchLimit:        cfg.Repositories.FetchLimit,
		OnRefresh:         onRefresh,
		Logger:            options.Logger.With("component", "repotree"),
	})
	repos := repofs.New(repofs.Options{
		API:   client,
		Cache: trees,
		Resolver: merge.NewResolver(merge.Options{
			Observer: onMerge,
			Logger:   options.Logger.With("component", "merge"),
		}),
		Logger: options.Logger.With("component", "repofs"),
	})

	router := vfs.NewRouter()
	router.Register(vfs.SchemeGist, snippets)
	router.Register(vfs.SchemeRepo, repos)

	logger := options.Logger
	unsubscribe := trees.Subscribe(func(event repotree.TreeEvent) {
		logger.Debug("repository tree replaced",
			"repository", event.ID.String(),
			"generation", event.Generation,
			"reindexed", event.Reindexed,
		)
	})

	return &Workspace{
		Client:      client,
		Snippets:    snippets,
		Trees:       trees,
		Repos:       repos,
		Router:      router,
		gists:       append([]string(nil), cfg.Snippets.Gists...),
		state:       state.Open(cfg.Repositories.StateFile),
		unsubscribe: unsubscribe,
		metrics:     options.Metrics,
		logger:      logger,
	}, nil
}

// Gists returns the configured gist ids.
func (w *Workspace) Gists() []string {
	return append([]string(nil), w.gists...)
}

// Owners returns the sorted owners of the open repositories.
func (w *Workspace) Owners() []string {
	var owners []string
	for _, repo := range w.Trees.Repositories() {
		if !slices.Contains(owners, repo.ID.Owner) {
			owners = append(owners, repo.ID.Owner)
		}
	}
	slices.Sort(owners)
	return owners
}

// Start opens every managed repository. It fails only when the state
// file cannot be read.
func (w *Workspace) Start(ctx context.Context) error {
	managed, err := w.state.Repositories()
	if err != nil {
		return fmt.Errorf("reading managed repositories: %w", err)
	}
	for _, repo := range managed {
		if _, err := w.Trees.Open(ctx, repo.Owner, repo.Name, repo.Branch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("managed repository unavailable",
				"repository", repo.String(),
				"error", err,
			)
		}
	}
	w.updateOpen()
	w.logger.Info("workspace started",
		"gists", len(w.gists),
		"repositories", len(w.Trees.Repositories()),
		"managed", len(managed),
	)
	return nil
}

// ManagedRepositories lists the repositories recorded in the state
// file, open or not.
func (w *Workspace) ManagedRepositories() ([]state.Repository, error) {
	return w.state.Repositories()
}

// OpenRepository opens a repository and records it as managed. An
// empty branch follows the default branch.
func (w *Workspace) OpenRepository(ctx context.Context, owner, name, branch string) (repotree.Repository, error) {
	repo, err := w.Trees.Open(ctx, owner, name, branch)
	if err != nil {
		return repotree.Repository{}, err
	}
	w.updateOpen()
	if _, err := w.state.Add(state.Repository{Owner: owner, Name: name, Branch: branch}); err != nil {
		return repo, fmt.Errorf("recording %s/%s: %w", owner, name, err)
	}
	return repo, nil
}

// CloseRepository closes a repository and stops managing it. Closing
// a repository that is managed but not open only updates the state
// file.
func (w *Workspace) CloseRepository(owner, name, branch string) error {
	if id, ok := w.Trees.Resolve(owner, name, branch); ok {
		w.Trees.Close(id)
		if w.metrics != nil {
			w.metrics.ForgetRepository(id)
		}
		w.updateOpen()
	}
	removed, err := w.state.Remove(state.Repository{Owner: owner, Name: name, Branch: branch})
	if err != nil {
		return fmt.Errorf("forgetting %s/%s: %w", owner, name, err)
	}
	if !removed {
		w.logger.Debug("repository was not managed", "owner", owner, "name", name, "branch", branch)
	}
	return nil
}

// Close flushes pending snippet writes and stops every refresh loop.
func (w *Workspace) Close(ctx context.Context) error {
	flushErr := w.Snippets.Close(ctx)
	w.unsubscribe()
	w.Trees.CloseAll()
	w.updateOpen()
	if flushErr != nil {
		return fmt.Errorf("flushing pending writes: %w", flushErr)
	}
	return nil
}

func (w *Workspace) updateOpen() {
	if w.metrics != nil {
		w.metrics.SetOpenRepositories(len(w.Trees.Repositories()))
	}
}
