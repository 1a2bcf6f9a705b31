//go:build fuse

// Package fuseadapter bridges a newfs.FileSystem onto the host kernel via
// github.com/hanwen/go-fuse/v2, the same dependency the teacher repo
// links against for its own (read-only) FUSE binding (inode_fuse.go).
// Unlike the teacher, which hand-rolls Lookup/Open/OpenDir/ReadDir
// callbacks against the low-level fuse package, this adapter is built on
// go-fuse/v2/fs's InodeEmbedder node API: newfs's façade already does
// all path resolution and state management, so the adapter's only job is
// translating between fs.Inode callbacks and FileSystem calls — there is
// no squashfs-style on-disk directory reader to wrap directly into the
// raw callback shape.
package fuseadapter

import (
	"context"
	"errors"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/aerfio/newfs"
)

// Root is the FUSE root node for a mounted newfs.FileSystem.
type Root struct {
	fs.Inode
	nfs  *newfs.FileSystem
	path string
}

var (
	_ fs.InodeEmbedder = (*Root)(nil)
	_ fs.NodeLookuper  = (*Root)(nil)
	_ fs.NodeReaddirer = (*Root)(nil)
	_ fs.NodeGetattrer = (*Root)(nil)
	_ fs.NodeMkdirer   = (*Root)(nil)
	_ fs.NodeCreater   = (*Root)(nil)
	_ fs.NodeUnlinker  = (*Root)(nil)
	_ fs.NodeRmdirer   = (*Root)(nil)
	_ fs.NodeRenamer   = (*Root)(nil)
	_ fs.NodeReader    = (*Root)(nil)
	_ fs.NodeWriter    = (*Root)(nil)
	_ fs.NodeSetattrer = (*Root)(nil)
	_ fs.NodeOpener    = (*Root)(nil)
)

func join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func errnoOf(err error) syscall.Errno {
	switch {
	case err == nil:
		return fs.OK
	case errors.Is(err, newfs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, newfs.ErrExists):
		return syscall.EEXIST
	case errors.Is(err, newfs.ErrIsDir):
		return syscall.EISDIR
	case errors.Is(err, newfs.ErrUnsupported):
		return syscall.ENOTSUP
	case errors.Is(err, newfs.ErrSeek):
		return syscall.EINVAL
	case errors.Is(err, newfs.ErrNoSpace):
		return syscall.ENOSPC
	case errors.Is(err, newfs.ErrIO):
		return syscall.EIO
	case errors.Is(err, newfs.ErrInvalid):
		return syscall.EINVAL
	case errors.Is(err, newfs.ErrAccess):
		return syscall.EACCES
	default:
		return syscall.EIO
	}
}

func (r *Root) child(name string) *Root {
	return &Root{nfs: r.nfs, path: join(r.path, name)}
}

func fillAttr(out *fuse.Attr, st *newfs.Stat) {
	out.Mode = uint32(st.Type.Mode())
	out.Size = uint64(st.Size)
	out.Nlink = uint32(st.Links)
	out.Blocks = uint64(st.Blocks)
	out.SetTimes(&st.ATime, &st.MTime, &st.MTime)
}

func (r *Root) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := r.nfs.GetAttr(r.path)
	if err != nil {
		return errnoOf(err)
	}
	fillAttr(&out.Attr, st)
	return fs.OK
}

func (r *Root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := r.child(name)
	st, err := r.nfs.GetAttr(child.path)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(&out.Attr, st)
	mode := uint32(st.Type.Mode())
	stable := fs.StableAttr{Mode: mode & syscall.S_IFMT}
	return r.NewInode(ctx, child, stable), fs.OK
}

func (r *Root) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	var entries []fuse.DirEntry
	for i := 0; ; i++ {
		e, err := r.nfs.ReadDir(r.path, i)
		if err != nil {
			return nil, errnoOf(err)
		}
		if e == nil {
			break
		}
		entries = append(entries, fuse.DirEntry{
			Name: e.Name,
			Ino:  uint64(e.Ino),
			Mode: uint32(e.Type.Mode()),
		})
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (r *Root) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := r.child(name)
	if err := r.nfs.Mkdir(child.path); err != nil {
		return nil, errnoOf(err)
	}
	st, err := r.nfs.GetAttr(child.path)
	if err != nil {
		return nil, errnoOf(err)
	}
	fillAttr(&out.Attr, st)
	return r.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFDIR}), fs.OK
}

func (r *Root) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	child := r.child(name)
	if err := r.nfs.Mknod(child.path); err != nil {
		return nil, nil, 0, errnoOf(err)
	}
	st, err := r.nfs.GetAttr(child.path)
	if err != nil {
		return nil, nil, 0, errnoOf(err)
	}
	fillAttr(&out.Attr, st)
	inode := r.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG})
	return inode, nil, 0, fs.OK
}

func (r *Root) Unlink(ctx context.Context, name string) syscall.Errno {
	return errnoOf(r.nfs.Unlink(join(r.path, name)))
}

func (r *Root) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errnoOf(r.nfs.Rmdir(join(r.path, name)))
}

func (r *Root) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	np, ok := newParent.(*Root)
	if !ok {
		return syscall.EXDEV
	}
	return errnoOf(r.nfs.Rename(join(r.path, name), join(np.path, newName)))
}

func (r *Root) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if _, err := r.nfs.Open(r.path); err != nil {
		return nil, 0, errnoOf(err)
	}
	return nil, fuse.FOPEN_KEEP_CACHE, fs.OK
}

func (r *Root) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	buf, err := r.nfs.Read(r.path, off, len(dest))
	if err != nil {
		return nil, errnoOf(err)
	}
	return fuse.ReadResultData(buf), fs.OK
}

func (r *Root) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := r.nfs.Write(r.path, data, off)
	if err != nil {
		return 0, errnoOf(err)
	}
	return uint32(n), fs.OK
}

func (r *Root) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if err := r.nfs.Truncate(r.path, int64(size)); err != nil {
			return errnoOf(err)
		}
	}
	st, err := r.nfs.GetAttr(r.path)
	if err != nil {
		return errnoOf(err)
	}
	fillAttr(&out.Attr, st)
	return fs.OK
}

// NewRoot builds the root node (a *Root embedding fs.Inode) for mounting
// nfs with go-fuse's Server.
func NewRoot(nfs *newfs.FileSystem) *Root {
	return &Root{nfs: nfs, path: "/"}
}

// Mount mounts nfs at mountpoint and returns the go-fuse server that is
// serving it; it does not block. Waiting for the filesystem to be
// unmounted is left to the caller (for example via the server's Wait).
func Mount(mountpoint string, nfs *newfs.FileSystem, opts *fs.Options) (*fuse.Server, error) {
	root := NewRoot(nfs)
	server, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		return nil, err
	}
	return server, nil
}
