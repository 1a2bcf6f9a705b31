package newfs

import "encoding/binary"

// Dentry is a named directory entry binding a filename to an inode under
// a parent directory. Parent and Next are navigational only — destruction
// is driven by dropInode's explicit recursion, never by these pointers
// going out of scope (spec.md §3, "Ownership rules").
type Dentry struct {
	Name   string
	Ino    uint32
	Type   FileType
	Parent *Dentry
	Next   *Dentry
	Inode  *Inode // nil until materialized
}

func encodeDentryInto(buf []byte, d *Dentry) {
	n := copy(buf[:onDiskNameLen], d.Name)
	for i := n; i < onDiskNameLen; i++ {
		buf[i] = 0
	}
	o := onDiskNameLen
	binary.LittleEndian.PutUint32(buf[o:], d.Ino)
	o += 4
	buf[o] = byte(d.Type)
}

func decodeDentry(buf []byte) (name string, ino uint32, typ FileType) {
	end := 0
	for end < onDiskNameLen && buf[end] != 0 {
		end++
	}
	name = string(buf[:end])
	o := onDiskNameLen
	ino = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	typ = FileType(buf[o])
	return
}

// allocDentry head-inserts d into inode's child list, incrementing its
// child count and logical size by one on-disk dentry record. Mirrors
// newfs_alloc_dentry's head-insertion.
func allocDentry(inode *Inode, d *Dentry) int {
	d.Next = inode.Children
	inode.Children = d
	inode.ChildCount++
	inode.Size += onDiskDentrySize
	return inode.ChildCount
}

// dropDentry unlinks d from inode's child list by identity, decrementing
// its child count. Returns errDentryNotFound if d is not present.
func dropDentry(inode *Inode, d *Dentry) error {
	var prev *Dentry
	for cur := inode.Children; cur != nil; cur = cur.Next {
		if cur == d {
			if prev == nil {
				inode.Children = cur.Next
			} else {
				prev.Next = cur.Next
			}
			inode.ChildCount--
			inode.Size -= onDiskDentrySize
			d.Next = nil
			return nil
		}
		prev = cur
	}
	return errDentryNotFound
}

// allocInodeFor allocates a fresh inode for d, wires the mutual
// dentry<->inode references, and initializes block pointers/dirty flags.
// A REG inode additionally gets its MaxFileBlocks*blockSize in-memory
// buffer; a DIR inode starts with an empty child list.
func (sb *Superblock) allocInodeFor(d *Dentry, typ FileType) (*Inode, error) {
	idx, err := sb.alloc.allocInode()
	if err != nil {
		return nil, err
	}

	inode := &Inode{
		sb:     sb,
		Ino:    uint32(idx),
		Type:   typ,
		Link:   1,
		Blocks: newBlocks(),
		Dentry: d,
	}

	d.Ino = inode.Ino
	d.Type = typ
	d.Inode = inode

	if typ == TypeReg {
		inode.Data = make([]byte, MaxFileBlocks*sb.blockSize)
	}

	return inode, nil
}
