// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfsfuse

import (
	"context"
	"sync"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/padfs/lib/vfs"
)

// fileHandle holds a file's whole content for the life of one open.
// Reads are served from the buffer; writes grow it and mark it dirty
// for the next Flush.
type fileHandle struct {
	node *fileNode

	mu     sync.Mutex
	buffer []byte
	write  bool
	dirty  bool

	// base is the version the buffer was read at, when the provider
	// tracks versions. Each Flush writes against it and moves it on.
	base *vfs.Base
}

var (
	_ gofuse.FileReader   = (*fileHandle)(nil)
	_ gofuse.FileWriter   = (*fileHandle)(nil)
	_ gofuse.FileFlusher  = (*fileHandle)(nil)
	_ gofuse.FileReleaser = (*fileHandle)(nil)
)

func (h *fileHandle) Read(_ context.Context, dest []byte, offset int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if offset >= int64(len(h.buffer)) {
		return fuse.ReadResultData(nil), 0
	}
	end := min(offset+int64(len(dest)), int64(len(h.buffer)))
	return fuse.ReadResultData(append([]byte(nil), h.buffer[offset:end]...)), 0
}

// Write stores data at offset, growing the buffer with zeros when the
// write starts past the end.
func (h *fileHandle) Write(_ context.Context, data []byte, offset int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.write && !h.dirty {
		return 0, syscall.EBADF
	}
	end := offset + int64(len(data))
	if end > int64(len(h.buffer)) {
		h.buffer = resize(h.buffer, end)
	}
	copy(h.buffer[offset:], data)
	h.dirty = true
	return uint32(len(data)), 0
}

// Flush writes a dirty buffer through the provider. Later flushes of
// an unchanged buffer are no-ops.
func (h *fileHandle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty {
		return 0
	}
	content := append([]byte(nil), h.buffer...)
	base, err := h.node.writeFrom(ctx, h.base, content)
	if err != nil {
		return h.node.errno("write", err)
	}
	h.base = base
	h.dirty = false
	return 0
}

func (h *fileHandle) Release(_ context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dirty {
		h.node.options.Logger.Warn("released file with unflushed writes", "uri", h.node.uri.String())
	}
	h.buffer = nil
	return 0
}

func (h *fileHandle) writable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.write || h.dirty
}

func (h *fileHandle) size() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.buffer))
}

func (h *fileHandle) truncate(size int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffer = resize(h.buffer, size)
	h.dirty = true
}

// resize returns content cut or zero-extended to size.
func resize(content []byte, size int64) []byte {
	if size <= int64(len(content)) {
		return content[:size]
	}
	grown := make([]byte, size)
	copy(grown, content)
	return grown
}
