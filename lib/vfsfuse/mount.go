// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfsfuse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/padfs/lib/vfs"
)

// BacklinksAttr is the extended attribute holding a document's
// backlinks.
const BacklinksAttr = "user.padfs.backlinks"

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is created if it does not exist.
	Mountpoint string

	// FileSystem serves both the gist and the repo scheme.
	FileSystem vfs.FileSystem

	// Gists lists the snippet stores shown under gists/.
	Gists func() []string

	// Owners lists the owners shown under repos/.
	Owners func() []string

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger defaults to an error-level text logger on stderr.
	Logger *slog.Logger
}

// Mount mounts the filesystem. The caller must call Unmount on the
// returned server.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.FileSystem == nil {
		return nil, fmt.Errorf("file system is required")
	}
	if options.Gists == nil {
		options.Gists = func() []string { return nil }
	}
	if options.Owners == nil {
		options.Owners = func() []string { return nil }
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	// Remote trees change behind the kernel's back; keep its caches
	// short.
	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	root := &rootNode{options: &options}
	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "padfs",
			Name:       "padfs",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("padfs mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// rootNode has two children: "gists" and "repos".
type rootNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.NodeOnAdder = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	gists := r.NewPersistentInode(ctx, &listNode{
		options: r.options,
		scheme:  vfs.SchemeGist,
		names:   r.options.Gists,
	}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild("gists", gists, true)

	repos := r.NewPersistentInode(ctx, &listNode{
		options: r.options,
		scheme:  vfs.SchemeRepo,
		names:   r.options.Owners,
	}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild("repos", repos, true)
}

// listNode is gists/ or repos/. Its children are URI authorities.
type listNode struct {
	gofuse.Inode
	options *Options
	scheme  string
	names   func() []string
}

var (
	_ gofuse.NodeLookuper  = (*listNode)(nil)
	_ gofuse.NodeReaddirer = (*listNode)(nil)
	_ gofuse.NodeGetattrer = (*listNode)(nil)
)

func (l *listNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if !slices.Contains(l.names(), name) {
		return nil, syscall.ENOENT
	}
	uri := vfs.URI{Scheme: l.scheme, Authority: name, Path: "/"}
	out.Mode = syscall.S_IFDIR | 0o755
	return l.NewInode(ctx, &dirNode{options: l.options, uri: uri}, gofuse.StableAttr{Mode: syscall.S_IFDIR}), 0
}

func (l *listNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	names := l.names()
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, fuse.DirEntry{Name: name, Mode: syscall.S_IFDIR})
	}
	return gofuse.NewListDirStream(entries), 0
}

func (l *listNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o555
	return 0
}

// dirNode is a directory inside a store.
type dirNode struct {
	gofuse.Inode
	options *Options
	uri     vfs.URI
}

var (
	_ gofuse.NodeLookuper  = (*dirNode)(nil)
	_ gofuse.NodeReaddirer = (*dirNode)(nil)
	_ gofuse.NodeGetattrer = (*dirNode)(nil)
	_ gofuse.NodeMkdirer   = (*dirNode)(nil)
	_ gofuse.NodeCreater   = (*dirNode)(nil)
	_ gofuse.NodeUnlinker  = (*dirNode)(nil)
	_ gofuse.NodeRmdirer   = (*dirNode)(nil)
	_ gofuse.NodeRenamer   = (*dirNode)(nil)
)

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	child := d.uri.Join(name)
	stat, err := d.options.FileSystem.Stat(ctx, child)
	if err != nil {
		return nil, d.errno("lookup", child, err)
	}
	fillAttr(&out.Attr, stat)
	return d.childInode(ctx, child, stat.Type), 0
}

func (d *dirNode) childInode(ctx context.Context, uri vfs.URI, fileType vfs.FileType) *gofuse.Inode {
	if fileType == vfs.TypeDirectory {
		return d.NewInode(ctx, &dirNode{options: d.options, uri: uri}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	}
	return d.NewInode(ctx, &fileNode{options: d.options, uri: uri}, gofuse.StableAttr{Mode: syscall.S_IFREG})
}

func (d *dirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	children, err := d.options.FileSystem.ReadDirectory(ctx, d.uri)
	if err != nil {
		return nil, d.errno("readdir", d.uri, err)
	}
	entries := make([]fuse.DirEntry, 0, len(children))
	for _, child := range children {
		mode := uint32(syscall.S_IFREG)
		if child.Type == vfs.TypeDirectory {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: child.Name, Mode: mode})
	}
	return gofuse.NewListDirStream(entries), 0
}

func (d *dirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o755
	return 0
}

func (d *dirNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	child := d.uri.Join(name)
	if err := d.options.FileSystem.CreateDirectory(ctx, child); err != nil {
		return nil, d.errno("mkdir", child, err)
	}
	out.Mode = syscall.S_IFDIR | 0o755
	return d.childInode(ctx, child, vfs.TypeDirectory), 0
}

// Create opens a new, empty file. Nothing reaches the store until the
// handle is flushed, so an empty file is written then.
func (d *dirNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	child := d.uri.Join(name)
	node := &fileNode{options: d.options, uri: child}
	handle := &fileHandle{node: node, write: true, dirty: true}
	fillAttr(&out.Attr, vfs.FileStat{Type: vfs.TypeFile})
	return d.NewInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG}), handle, fuse.FOPEN_DIRECT_IO, 0
}

func (d *dirNode) Unlink(ctx context.Context, name string) syscall.Errno {
	child := d.uri.Join(name)
	return d.errno("unlink", child, d.options.FileSystem.Delete(ctx, child))
}

func (d *dirNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	child := d.uri.Join(name)
	return d.errno("rmdir", child, d.options.FileSystem.Delete(ctx, child))
}

// Rename replaces an existing target file unless RENAME_NOREPLACE is
// set, which is what editors that save through a temporary file
// expect. The replacement is a delete followed by a rename.
func (d *dirNode) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	target, ok := newParent.(*dirNode)
	if !ok {
		return syscall.EXDEV
	}
	from := d.uri.Join(name)
	to := target.uri.Join(newName)
	err := d.options.FileSystem.Rename(ctx, from, to)
	if err != nil && vfs.Errno(err) == syscall.EEXIST && flags&renameNoReplace == 0 {
		stat, statErr := d.options.FileSystem.Stat(ctx, to)
		if statErr == nil && stat.Type == vfs.TypeFile {
			if err = d.options.FileSystem.Delete(ctx, to); err == nil {
				err = d.options.FileSystem.Rename(ctx, from, to)
			}
		}
	}
	return d.errno("rename", from, err)
}

// renameNoReplace is RENAME_NOREPLACE from renameat2(2).
const renameNoReplace = 0x1

func (d *dirNode) errno(op string, uri vfs.URI, err error) syscall.Errno {
	return logErrno(d.options.Logger, op, uri, err)
}

// fileNode is a document inside a store.
type fileNode struct {
	gofuse.Inode
	options *Options
	uri     vfs.URI
}

var (
	_ gofuse.NodeGetattrer   = (*fileNode)(nil)
	_ gofuse.NodeSetattrer   = (*fileNode)(nil)
	_ gofuse.NodeOpener      = (*fileNode)(nil)
	_ gofuse.NodeGetxattrer  = (*fileNode)(nil)
	_ gofuse.NodeListxattrer = (*fileNode)(nil)
)

func (n *fileNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if handle, ok := f.(*fileHandle); ok && handle.writable() {
		fillAttr(&out.Attr, vfs.FileStat{Type: vfs.TypeFile, Size: handle.size()})
		return 0
	}
	stat, err := n.options.FileSystem.Stat(ctx, n.uri)
	if err != nil {
		return n.errno("getattr", err)
	}
	fillAttr(&out.Attr, stat)
	return 0
}

// Setattr supports truncation. Mode, owner and time changes are
// accepted and ignored.
func (n *fileNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	size, truncate := in.GetSize()
	if !truncate {
		return n.Getattr(ctx, f, out)
	}
	if handle, ok := f.(*fileHandle); ok && handle.writable() {
		handle.truncate(int64(size))
		return n.Getattr(ctx, f, out)
	}
	content, base, err := n.readBase(ctx)
	if err != nil {
		return n.errno("truncate", err)
	}
	content = resize(content, int64(size))
	if _, err := n.writeFrom(ctx, base, content); err != nil {
		return n.errno("truncate", err)
	}
	fillAttr(&out.Attr, vfs.FileStat{Type: vfs.TypeFile, Size: int64(len(content))})
	return 0
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	handle := &fileHandle{node: n, write: flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0}
	if handle.write && flags&syscall.O_TRUNC != 0 {
		// The content is discarded, but the version it had is still the
		// base the new content replaces.
		handle.dirty = true
		if writer, ok := n.options.FileSystem.(vfs.BaseWriter); ok {
			base, err := writer.ReadBase(ctx, n.uri)
			switch {
			case err == nil:
				handle.base = &base
			case !errors.Is(err, vfs.ErrNotSupported):
				return nil, 0, n.errno("open", err)
			}
		}
		return handle, fuse.FOPEN_DIRECT_IO, 0
	}
	content, base, err := n.readBase(ctx)
	if err != nil {
		return nil, 0, n.errno("open", err)
	}
	handle.buffer = content
	handle.base = base
	return handle, fuse.FOPEN_DIRECT_IO, 0
}

// readBase reads the file along with its version when the provider
// tracks one. The returned base is nil otherwise.
func (n *fileNode) readBase(ctx context.Context) ([]byte, *vfs.Base, error) {
	if writer, ok := n.options.FileSystem.(vfs.BaseWriter); ok {
		base, err := writer.ReadBase(ctx, n.uri)
		if err == nil {
			return base.Content, &base, nil
		}
		if !errors.Is(err, vfs.ErrNotSupported) {
			return nil, nil, err
		}
	}
	content, err := n.options.FileSystem.ReadFile(ctx, n.uri)
	return content, nil, err
}

// writeFrom writes content against base, or as a plain write when
// there is none, and returns the version to write against next.
func (n *fileNode) writeFrom(ctx context.Context, base *vfs.Base, content []byte) (*vfs.Base, error) {
	if writer, ok := n.options.FileSystem.(vfs.BaseWriter); ok && base != nil {
		next, err := writer.WriteFileFrom(ctx, n.uri, *base, content)
		if err != nil {
			return base, err
		}
		return &next, nil
	}
	return nil, n.options.FileSystem.WriteFile(ctx, n.uri, content)
}

func (n *fileNode) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	if attr != BacklinksAttr {
		return 0, syscall.ENODATA
	}
	linker, ok := n.options.FileSystem.(vfs.BackLinker)
	if !ok {
		return 0, syscall.ENODATA
	}
	links, err := linker.BackLinks(ctx, n.uri)
	if err != nil {
		if vfs.Errno(err) == syscall.ENOTSUP {
			return 0, syscall.ENODATA
		}
		return 0, n.errno("getxattr", err)
	}
	value, err := encodeBacklinks(links)
	if err != nil {
		return 0, n.errno("getxattr", err)
	}
	return copyAttr(dest, value)
}

func (n *fileNode) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	if _, ok := n.options.FileSystem.(vfs.BackLinker); !ok {
		return 0, 0
	}
	return copyAttr(dest, append([]byte(BacklinksAttr), 0))
}

func (n *fileNode) errno(op string, err error) syscall.Errno {
	return logErrno(n.options.Logger, op, n.uri, err)
}

// encodeBacklinks renders links as the backlinks attribute value. No
// links is an empty array rather than null.
func encodeBacklinks(links []vfs.BackLink) ([]byte, error) {
	if links == nil {
		links = []vfs.BackLink{}
	}
	return json.Marshal(links)
}

// copyAttr follows getxattr(2): an empty dest asks for the size.
func copyAttr(dest, value []byte) (uint32, syscall.Errno) {
	if len(dest) == 0 {
		return uint32(len(value)), 0
	}
	if len(dest) < len(value) {
		return uint32(len(value)), syscall.ERANGE
	}
	return uint32(copy(dest, value)), 0
}

func fillAttr(out *fuse.Attr, stat vfs.FileStat) {
	if stat.Type == vfs.TypeDirectory {
		out.Mode = syscall.S_IFDIR | 0o755
	} else {
		out.Mode = syscall.S_IFREG | 0o644
		out.Size = uint64(stat.Size)
		out.Blocks = (out.Size + 511) / 512
	}
	if !stat.ModTime.IsZero() {
		out.SetTimes(nil, &stat.ModTime, nil)
	}
}

// logErrno maps err and logs the failures a user would not expect
// from a local filesystem.
func logErrno(logger *slog.Logger, op string, uri vfs.URI, err error) syscall.Errno {
	errno := vfs.Errno(err)
	switch errno {
	case 0, syscall.ENOENT, syscall.EEXIST:
	default:
		logger.Error("file operation failed",
			"op", op,
			"uri", uri.String(),
			"errno", errno.Error(),
			"error", err,
		)
	}
	return errno
}
