package newfs

import (
	"encoding/binary"
)

// Inode is the in-memory object describing a file or directory,
// independent of any name. Spec.md §3 invariant: the set of assigned
// block indices in Blocks matches the set of bits set in the data bitmap
// for this inode's range.
type Inode struct {
	sb *Superblock

	Ino        uint32
	Type       FileType
	Link       uint32
	Size       int64
	DataBlkCnt int
	Blocks     [MaxFileBlocks]int32 // -1 means unassigned
	Dirty      [MaxFileBlocks]bool  // REG only

	Dentry *Dentry // back-pointer to the owning dentry

	// DIR only
	Children   *Dentry
	ChildCount int

	// REG only: the full possible file content, MaxFileBlocks*blockSize
	// bytes, resident for the lifetime of the in-memory inode. See
	// spec.md §9 "REG in-memory buffer".
	Data []byte
}

func newBlocks() [MaxFileBlocks]int32 {
	var b [MaxFileBlocks]int32
	for i := range b {
		b[i] = -1
	}
	return b
}

func (ino *Inode) encode() []byte {
	buf := make([]byte, onDiskInodeSize)
	o := 0
	binary.LittleEndian.PutUint32(buf[o:], ino.Ino)
	o += 4
	binary.LittleEndian.PutUint64(buf[o:], uint64(ino.Size))
	o += 8
	binary.LittleEndian.PutUint32(buf[o:], ino.Link)
	o += 4
	buf[o] = byte(ino.Type)
	o++
	binary.LittleEndian.PutUint32(buf[o:], uint32(ino.DataBlkCnt))
	o += 4
	binary.LittleEndian.PutUint32(buf[o:], uint32(ino.ChildCount))
	o += 4
	for i := 0; i < MaxFileBlocks; i++ {
		binary.LittleEndian.PutUint32(buf[o:], uint32(ino.Blocks[i]))
		o += 4
	}
	return buf
}

func decodeInode(sb *Superblock, buf []byte) *Inode {
	ino := &Inode{sb: sb, Blocks: newBlocks()}
	o := 0
	ino.Ino = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	ino.Size = int64(binary.LittleEndian.Uint64(buf[o:]))
	o += 8
	ino.Link = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	ino.Type = FileType(buf[o])
	o++
	ino.DataBlkCnt = int(binary.LittleEndian.Uint32(buf[o:]))
	o += 4
	ino.ChildCount = int(binary.LittleEndian.Uint32(buf[o:]))
	o += 4
	for i := 0; i < MaxFileBlocks; i++ {
		ino.Blocks[i] = int32(binary.LittleEndian.Uint32(buf[o:]))
		o += 4
	}
	return ino
}

// readInode loads ino's on-disk record, and — for directories — streams
// its child dentries by walking the directory's assigned data blocks.
// Mirrors original_source/src/newfs_utils.c's newfs_read_inode.
func (sb *Superblock) readInode(owner *Dentry, ino uint32) (*Inode, error) {
	raw, err := sb.io.Read(sb.inodeOffset(ino), onDiskInodeSize)
	if err != nil {
		return nil, err
	}
	inode := decodeInode(sb, raw)
	inode.Dentry = owner

	switch inode.Type {
	case TypeDir:
		childCount := inode.ChildCount
		inode.ChildCount = 0
		inode.Size = 0
		inode.Children = nil

		var blockBuf []byte
		blockSlot := -1
		blockPos := 0

		for i := 0; i < childCount; i++ {
			if blockBuf == nil || blockPos+onDiskDentrySize > sb.blockSize {
				blockSlot++
				if blockSlot >= MaxFileBlocks || inode.Blocks[blockSlot] == -1 {
					return nil, errCorruptDirectory
				}
				blockBuf, err = sb.io.Read(sb.dataBlockOffset(int(inode.Blocks[blockSlot])), sb.blockSize)
				if err != nil {
					return nil, err
				}
				blockPos = 0
			}

			rec := blockBuf[blockPos : blockPos+onDiskDentrySize]
			blockPos += onDiskDentrySize

			name, dino, dtyp := decodeDentry(rec)
			child := &Dentry{Name: name, Ino: dino, Type: dtyp, Parent: owner}
			allocDentry(inode, child)
		}
	case TypeReg:
		inode.Data = make([]byte, MaxFileBlocks*sb.blockSize)
		for i := 0; i < MaxFileBlocks; i++ {
			if inode.Blocks[i] == -1 {
				continue
			}
			block, err := sb.io.Read(sb.dataBlockOffset(int(inode.Blocks[i])), sb.blockSize)
			if err != nil {
				return nil, err
			}
			copy(inode.Data[i*sb.blockSize:(i+1)*sb.blockSize], block)
		}
	}

	return inode, nil
}

// syncInode recursively writes inode (and, for a directory, its children)
// back to disk. Mirrors newfs_sync_inode.
func (sb *Superblock) syncInode(inode *Inode) error {
	switch inode.Type {
	case TypeDir:
		var blockBuf []byte
		blockSlot := -1
		blockPos := 0

		flush := func() error {
			if blockBuf == nil || blockSlot < 0 {
				return nil
			}
			return sb.io.Write(sb.dataBlockOffset(int(inode.Blocks[blockSlot])), blockBuf)
		}

		for cur := inode.Children; cur != nil; cur = cur.Next {
			if blockBuf == nil || blockPos+onDiskDentrySize > sb.blockSize {
				if err := flush(); err != nil {
					return err
				}
				blockSlot++
				if blockSlot >= MaxFileBlocks {
					return ErrNoSpace
				}
				if inode.Blocks[blockSlot] == -1 {
					idx, err := sb.alloc.allocData()
					if err != nil {
						return err
					}
					inode.Blocks[blockSlot] = int32(idx)
					inode.DataBlkCnt = blockSlot + 1
				}
				blockBuf = make([]byte, sb.blockSize)
				blockPos = 0
			}

			encodeDentryInto(blockBuf[blockPos:blockPos+onDiskDentrySize], cur)
			blockPos += onDiskDentrySize

			if cur.Inode != nil {
				if err := sb.syncInode(cur.Inode); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}
		inode.Size = int64(inode.ChildCount) * onDiskDentrySize
	case TypeReg:
		for i := 0; i < MaxFileBlocks; i++ {
			if !inode.Dirty[i] {
				continue
			}
			if inode.Blocks[i] == -1 {
				idx, err := sb.alloc.allocData()
				if err != nil {
					return err
				}
				inode.Blocks[i] = int32(idx)
			}
			if err := sb.io.Write(sb.dataBlockOffset(int(inode.Blocks[i])), inode.Data[i*sb.blockSize:(i+1)*sb.blockSize]); err != nil {
				return err
			}
			inode.Dirty[i] = false
		}
		inode.DataBlkCnt = int(ceilDiv(inode.Size, int64(sb.blockSize)))
	}

	return sb.io.Write(sb.inodeOffset(inode.Ino), inode.encode())
}

// dropInode frees inode, recursing into children for a directory. The
// root may never be dropped.
func (sb *Superblock) dropInode(inode *Inode) error {
	if inode.Ino == RootIno {
		return ErrInvalid
	}

	if inode.Type == TypeDir {
		cur := inode.Children
		for cur != nil {
			next := cur.Next
			if cur.Inode == nil {
				child, err := sb.readInode(cur, cur.Ino)
				if err != nil {
					return err
				}
				cur.Inode = child
			}
			if err := sb.dropInode(cur.Inode); err != nil {
				return err
			}
			cur.Inode = nil
			cur = next
		}
		inode.Children = nil
		inode.ChildCount = 0
	}

	sb.alloc.freeInode(int(inode.Ino))
	for i := 0; i < MaxFileBlocks; i++ {
		if inode.Blocks[i] != -1 {
			sb.alloc.freeData(int(inode.Blocks[i]))
			inode.Blocks[i] = -1
		}
	}
	inode.Data = nil
	return nil
}
