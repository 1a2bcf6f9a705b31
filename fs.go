package newfs

import (
	"path"
	"strings"
	"time"
)

// Stat is the attribute snapshot getattr synthesizes: timestamps are
// generated at query time (spec.md §1, out of scope to persist them) and
// permissions are always DefaultPerm (permissive, also out of scope).
type Stat struct {
	Type   FileType
	Size   int64
	Blocks int64
	Links  int64
	ATime  time.Time
	MTime  time.Time
}

// DirEntry is a single child name/type/inode triple returned by ReadDir.
type DirEntry struct {
	Name string
	Ino  uint32
	Type FileType
}

// AccessMode mirrors POSIX access(2)'s mode argument.
type AccessMode int

const (
	OK  AccessMode = 0
	XOK AccessMode = 1 << 0
	WOK AccessMode = 1 << 1
	ROK AccessMode = 1 << 2
)

// FileSystem is the namespace façade a FUSE-style bridge drives: the
// twelve operations of spec.md §4.7, each taking a POSIX absolute path
// and translating it through the resolver and the inode/dentry stores.
// Every mutating operation executes purely in memory; the device is
// written only at Unmount (recursive write), and read at Mount and
// whenever an inode not yet loaded is first reached (lazy materialization).
type FileSystem struct {
	sb *Superblock
}

// MountFS opens dev through Mount and wraps the resulting Superblock in a
// FileSystem façade.
func MountFS(dev Device) (*FileSystem, error) {
	sb, err := Mount(dev)
	if err != nil {
		return nil, err
	}
	return &FileSystem{sb: sb}, nil
}

// Unmount flushes and closes the underlying device.
func (f *FileSystem) Unmount() error {
	return f.sb.Unmount()
}

// Superblock exposes the mounted Superblock for callers (the backup
// package, the CLI) that need lower-level access.
func (f *FileSystem) Superblock() *Superblock { return f.sb }

func splitPath(p string) (parent, leaf string) {
	p = "/" + strings.Trim(p, "/")
	return path.Dir(p), path.Base(p)
}

func validateComponents(p string) error {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	for _, c := range strings.Split(trimmed, "/") {
		if len(c) > MaxNameLen {
			return ErrInvalid
		}
	}
	return nil
}

func ceilDiv(v int64, d int64) int64 {
	if v <= 0 {
		return 0
	}
	return (v + d - 1) / d
}

// GetAttr synthesizes a Stat for path. The root reports size=usage and
// blocks=disk_size/block_size; every other path reports its inode's own
// size/block count and link=1 (root=2).
func (f *FileSystem) GetAttr(p string) (*Stat, error) {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	d, found, isRoot, err := f.sb.Lookup(p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	now := time.Now()
	st := &Stat{Type: d.Inode.Type, ATime: now, MTime: now}
	if isRoot {
		st.Size = f.sb.usage
		st.Blocks = f.sb.dev.Size() / int64(f.sb.blockSize)
		st.Links = 2
	} else {
		st.Size = d.Inode.Size
		st.Blocks = int64(d.Inode.DataBlkCnt)
		st.Links = 1
	}
	return st, nil
}

// ReadDir returns the single child at index offset, or nil (with no
// error) once offset reaches the child count.
func (f *FileSystem) ReadDir(p string, offset int) (*DirEntry, error) {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	d, found, _, err := f.sb.Lookup(p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	if d.Inode.Type != TypeDir {
		return nil, ErrUnsupported
	}

	idx := 0
	for cur := d.Inode.Children; cur != nil; cur = cur.Next {
		if idx == offset {
			return &DirEntry{Name: cur.Name, Ino: cur.Ino, Type: cur.Type}, nil
		}
		idx++
	}
	return nil, nil
}

func (f *FileSystem) create(p string, typ FileType) error {
	if err := validateComponents(p); err != nil {
		return err
	}
	parentPath, leaf := splitPath(p)

	parent, found, _, err := f.sb.Lookup(parentPath)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	if parent.Inode.Type != TypeDir {
		return ErrUnsupported
	}
	if findChildStrict(parent.Inode, leaf) != nil {
		return ErrExists
	}

	child := &Dentry{Name: leaf, Parent: parent}
	if _, err := f.sb.allocInodeFor(child, typ); err != nil {
		return err
	}
	allocDentry(parent.Inode, child)
	return nil
}

// Mkdir creates an empty directory at p.
func (f *FileSystem) Mkdir(p string) error {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()
	return f.create(p, TypeDir)
}

// Mknod creates an empty regular file at p.
func (f *FileSystem) Mknod(p string) error {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()
	return f.create(p, TypeReg)
}

// Read copies up to n bytes from p's in-memory data, starting at off.
func (f *FileSystem) Read(p string, off int64, n int) ([]byte, error) {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	d, found, _, err := f.sb.Lookup(p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	inode := d.Inode
	if inode.Type == TypeDir {
		return nil, ErrIsDir
	}
	if inode.Type != TypeReg {
		return nil, ErrUnsupported
	}
	if off > inode.Size {
		return nil, ErrSeek
	}

	end := off + int64(n)
	if end > inode.Size {
		end = inode.Size
	}
	out := make([]byte, end-off)
	copy(out, inode.Data[off:end])
	return out, nil
}

// Write copies buf into p's in-memory data at off, extending Size if the
// write reaches past the current end, and marks every block the write
// touches dirty. A write that would require more than MaxFileBlocks
// blocks fails with ErrNoSpace: the in-memory buffer spec.md §3 describes
// is fixed at exactly MaxFileBlocks*blockSize bytes, so there is no slot
// to hold bytes past that point (see DESIGN.md for how this differs from
// the source's unchecked memcpy past the buffer's end).
func (f *FileSystem) Write(p string, buf []byte, off int64) (int, error) {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	d, found, _, err := f.sb.Lookup(p)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNotFound
	}
	inode := d.Inode
	if inode.Type == TypeDir {
		return 0, ErrIsDir
	}
	if inode.Type != TypeReg {
		return 0, ErrUnsupported
	}
	if off > inode.Size {
		return 0, ErrSeek
	}

	end := off + int64(len(buf))
	if end > int64(len(inode.Data)) {
		return 0, ErrNoSpace
	}

	copy(inode.Data[off:end], buf)
	if end > inode.Size {
		inode.Size = end
	}

	bs := int64(f.sb.blockSize)
	lBlock := off / bs
	rBlock := ceilDiv(end, bs)
	for blk := lBlock; blk < rBlock && blk < MaxFileBlocks; blk++ {
		inode.Dirty[blk] = true
	}

	return len(buf), nil
}

// Truncate sets p's size, recomputing data_blk_cnt and re-deriving the
// block-pointer/bitmap state for the inode's own range: blocks below the
// new count are ensured allocated, blocks at or above it are freed.
func (f *FileSystem) Truncate(p string, newSize int64) error {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	d, found, _, err := f.sb.Lookup(p)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	inode := d.Inode
	if inode.Type == TypeDir {
		return ErrIsDir
	}

	bs := int64(f.sb.blockSize)
	newBlkCnt := int(ceilDiv(newSize, bs))
	if newBlkCnt > MaxFileBlocks {
		return ErrNoSpace
	}

	for i := 0; i < newBlkCnt; i++ {
		if inode.Blocks[i] == -1 {
			idx, err := f.sb.alloc.allocData()
			if err != nil {
				return err
			}
			inode.Blocks[i] = int32(idx)
		}
		inode.Dirty[i] = true
	}
	for i := newBlkCnt; i < MaxFileBlocks; i++ {
		if inode.Blocks[i] != -1 {
			f.sb.alloc.freeData(int(inode.Blocks[i]))
			inode.Blocks[i] = -1
		}
		inode.Dirty[i] = false
	}
	inode.DataBlkCnt = newBlkCnt

	oldSize := inode.Size
	inode.Size = newSize
	if newSize < oldSize {
		for i := newSize; i < oldSize && i < int64(len(inode.Data)); i++ {
			inode.Data[i] = 0
		}
	} else if newSize > oldSize {
		for i := oldSize; i < newSize; i++ {
			inode.Data[i] = 0
		}
	}
	return nil
}

// Unlink drops a regular file's inode and removes its dentry from its
// parent.
func (f *FileSystem) Unlink(p string) error {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	d, found, isRoot, err := f.sb.Lookup(p)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	if isRoot {
		return ErrInvalid
	}
	if d.Inode.Type != TypeReg {
		return ErrIsDir
	}

	if err := f.sb.dropInode(d.Inode); err != nil {
		return err
	}
	if err := dropDentry(d.Parent.Inode, d); err != nil {
		return err
	}
	d.Inode = nil
	return nil
}

// Rmdir recursively removes every child of p (regular files dropped
// directly, subdirectories recursed — exactly dropInode's own behavior),
// then drops p itself.
func (f *FileSystem) Rmdir(p string) error {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	d, found, isRoot, err := f.sb.Lookup(p)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	if d.Inode.Type != TypeDir {
		return ErrUnsupported
	}
	if isRoot {
		return ErrInvalid
	}

	if err := f.sb.dropInode(d.Inode); err != nil {
		return err
	}
	if err := dropDentry(d.Parent.Inode, d); err != nil {
		return err
	}
	d.Inode = nil
	return nil
}

// Rename overwrites from's final path component with to's final
// component and re-parents it under to's resolved parent directory. Per
// spec.md §9's resolved Open Question, the parent of `to` is resolved
// explicitly rather than reusing whatever dentry a prefix match happened
// to land on.
func (f *FileSystem) Rename(from, to string) error {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	if err := validateComponents(to); err != nil {
		return err
	}

	fromD, found, isRoot, err := f.sb.Lookup(from)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	if isRoot {
		return ErrInvalid
	}

	toParentPath, toLeaf := splitPath(to)
	toParent, found2, _, err := f.sb.Lookup(toParentPath)
	if err != nil {
		return err
	}
	if !found2 {
		return ErrNotFound
	}
	if toParent.Inode.Type != TypeDir {
		return ErrUnsupported
	}
	if existing := findChildStrict(toParent.Inode, toLeaf); existing != nil {
		return ErrExists
	}

	oldParent := fromD.Parent
	if err := dropDentry(oldParent.Inode, fromD); err != nil {
		return err
	}
	fromD.Name = toLeaf
	fromD.Parent = toParent
	allocDentry(toParent.Inode, fromD)
	return nil
}

// Access reports whether mode is permitted on p. R/W/X checks always
// succeed; F_OK succeeds only if p exists.
func (f *FileSystem) Access(p string, mode AccessMode) error {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	if mode == OK {
		_, found, _, err := f.sb.Lookup(p)
		if err != nil {
			return err
		}
		if !found {
			return ErrAccess
		}
	}
	return nil
}
