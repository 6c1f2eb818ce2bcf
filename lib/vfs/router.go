// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"fmt"
	"sync"
)

// Router dispatches each call to the provider registered for the
// URI's scheme. It implements FileSystem, Copier and BackLinker;
// optional capabilities fail with ErrNotSupported when the target
// provider lacks them.
type Router struct {
	mu        sync.RWMutex
	providers map[string]FileSystem
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{providers: make(map[string]FileSystem)}
}

// Register installs provider for scheme, replacing any previous one.
func (r *Router) Register(scheme string, provider FileSystem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[scheme] = provider
}

func (r *Router) provider(op string, uri URI) (FileSystem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[uri.Scheme]
	if !ok {
		return nil, Fail(op, uri, fmt.Errorf("no provider for scheme %q: %w", uri.Scheme, ErrNotSupported))
	}
	return provider, nil
}

func (r *Router) Stat(ctx context.Context, uri URI) (FileStat, error) {
	provider, err := r.provider("stat", uri)
	if err != nil {
		return FileStat{}, err
	}
	return provider.Stat(ctx, uri)
}

func (r *Router) ReadDirectory(ctx context.Context, uri URI) ([]DirEntry, error) {
	provider, err := r.provider("readdir", uri)
	if err != nil {
		return nil, err
	}
	return provider.ReadDirectory(ctx, uri)
}

func (r *Router) CreateDirectory(ctx context.Context, uri URI) error {
	provider, err := r.provider("mkdir", uri)
	if err != nil {
		return err
	}
	return provider.CreateDirectory(ctx, uri)
}

func (r *Router) ReadFile(ctx context.Context, uri URI) ([]byte, error) {
	provider, err := r.provider("read", uri)
	if err != nil {
		return nil, err
	}
	return provider.ReadFile(ctx, uri)
}

func (r *Router) WriteFile(ctx context.Context, uri URI, content []byte) error {
	provider, err := r.provider("write", uri)
	if err != nil {
		return err
	}
	return provider.WriteFile(ctx, uri, content)
}

func (r *Router) Delete(ctx context.Context, uri URI) error {
	provider, err := r.provider("delete", uri)
	if err != nil {
		return err
	}
	return provider.Delete(ctx, uri)
}

// Rename refuses moves across containers; neither store can commit
// one atomically.
func (r *Router) Rename(ctx context.Context, from, to URI) error {
	provider, err := r.provider("rename", from)
	if err != nil {
		return err
	}
	if !from.SameContainer(to) {
		return Fail("rename", from, fmt.Errorf("target %s is in another container: %w", to, ErrNotSupported))
	}
	return provider.Rename(ctx, from, to)
}

func (r *Router) Copy(ctx context.Context, from, to URI) error {
	provider, err := r.provider("copy", from)
	if err != nil {
		return err
	}
	copier, ok := provider.(Copier)
	if !ok || !from.SameContainer(to) {
		return Fail("copy", from, ErrNotSupported)
	}
	return copier.Copy(ctx, from, to)
}

func (r *Router) BackLinks(ctx context.Context, uri URI) ([]BackLink, error) {
	provider, err := r.provider("backlinks", uri)
	if err != nil {
		return nil, err
	}
	linker, ok := provider.(BackLinker)
	if !ok {
		return nil, nil
	}
	return linker.BackLinks(ctx, uri)
}

// ReadBase fails with ErrNotSupported for providers that are not
// BaseWriters.
func (r *Router) ReadBase(ctx context.Context, uri URI) (Base, error) {
	provider, err := r.provider("read", uri)
	if err != nil {
		return Base{}, err
	}
	writer, ok := provider.(BaseWriter)
	if !ok {
		return Base{}, Fail("read", uri, ErrNotSupported)
	}
	return writer.ReadBase(ctx, uri)
}

func (r *Router) WriteFileFrom(ctx context.Context, uri URI, base Base, content []byte) (Base, error) {
	provider, err := r.provider("write", uri)
	if err != nil {
		return Base{}, err
	}
	writer, ok := provider.(BaseWriter)
	if !ok {
		return Base{}, Fail("write", uri, ErrNotSupported)
	}
	return writer.WriteFileFrom(ctx, uri, base, content)
}

var (
	_ FileSystem = (*Router)(nil)
	_ Copier     = (*Router)(nil)
	_ BackLinker = (*Router)(nil)
	_ BaseWriter = (*Router)(nil)
)
