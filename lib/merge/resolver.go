// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/bureau-foundation/padfs/lib/vfs"
)

// Remote is the file being merged into.
type Remote interface {
	// Current returns the file's content and the version token a
	// write must supply.
	Current(ctx context.Context) (content []byte, sha string, err error)

	// Write stores content if the remote is still at sha and returns
	// the new version token.
	Write(ctx context.Context, content []byte, sha string) (newSHA string, err error)
}

// Outcome classifies a resolution for observers.
type Outcome string

const (
	OutcomeMerged   Outcome = "merged"
	OutcomeConflict Outcome = "conflict"
	OutcomeFailed   Outcome = "failed"
)

// Options configures a Resolver.
type Options struct {
	// Context is the number of unchanged lines kept around each hunk.
	// Defaults to DefaultContext.
	Context int

	// IsConflict reports whether a Write error means the remote moved
	// again. Defaults to errors.Is(err, vfs.ErrConflict).
	IsConflict func(error) bool

	// Observer, if set, is called once per Resolve.
	Observer func(Outcome)

	Logger *slog.Logger
}

// Resolver performs textual three-way merges.
type Resolver struct {
	context    int
	isConflict func(error) bool
	observer   func(Outcome)
	logger     *slog.Logger
}

// NewResolver returns a Resolver.
func NewResolver(options Options) *Resolver {
	if options.Context <= 0 {
		options.Context = DefaultContext
	}
	if options.IsConflict == nil {
		options.IsConflict = func(err error) bool { return errors.Is(err, vfs.ErrConflict) }
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Resolver{
		context:    options.Context,
		isConflict: options.IsConflict,
		observer:   options.Observer,
		logger:     options.Logger,
	}
}

// Result describes a successful merge.
type Result struct {
	Merged []byte

	// BaseSHA is the remote version the merge was applied to.
	BaseSHA string

	// SHA is the version created by writing Merged.
	SHA string

	Hunks int
}

// Resolve merges the edit from base to local into the remote's
// current content and writes the result. A remote that has been
// deleted yields an error wrapping vfs.ErrNotFound. A hunk that does
// not apply, or a remote that moves again before the merged write,
// yields an error wrapping vfs.ErrUnresolvableConflict.
func (r *Resolver) Resolve(ctx context.Context, base, local []byte, remote Remote) (Result, error) {
	result, err := r.resolve(ctx, base, local, remote)
	outcome := OutcomeMerged
	switch {
	case errors.Is(err, vfs.ErrUnresolvableConflict):
		outcome = OutcomeConflict
		r.logger.Warn("unresolvable write conflict", "error", err)
	case err != nil:
		outcome = OutcomeFailed
	default:
		r.logger.Info("merged concurrent edit",
			"base_sha", result.BaseSHA,
			"sha", result.SHA,
			"hunks", result.Hunks,
		)
	}
	if r.observer != nil {
		r.observer(outcome)
	}
	return result, err
}

func (r *Resolver) resolve(ctx context.Context, base, local []byte, remote Remote) (Result, error) {
	if !utf8.Valid(base) || !utf8.Valid(local) {
		return Result{}, fmt.Errorf("binary content cannot be merged: %w", vfs.ErrUnresolvableConflict)
	}
	patch, err := Diff(base, local, r.context)
	if err != nil {
		return Result{}, err
	}

	current, sha, err := remote.Current(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading current remote content: %w", err)
	}
	if !utf8.Valid(current) {
		return Result{}, fmt.Errorf("remote content is binary: %w", vfs.ErrUnresolvableConflict)
	}

	merged, err := patch.Apply(current)
	if err != nil {
		return Result{}, err
	}

	newSHA, err := remote.Write(ctx, merged, sha)
	if err != nil {
		if r.isConflict(err) {
			return Result{}, fmt.Errorf("remote changed again during merge: %w",
				errors.Join(vfs.ErrUnresolvableConflict, err))
		}
		return Result{}, fmt.Errorf("writing merged content: %w", err)
	}
	return Result{Merged: merged, BaseSHA: sha, SHA: newSHA, Hunks: patch.Hunks()}, nil
}
