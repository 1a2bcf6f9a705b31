package newfs

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"
)

// onDiskSuperblockSize is the fixed byte size of the header written at
// block 0: magic + five region block counts + usage + two limits, all
// uint32/uint64 in a fixed order. Region offsets are not stored
// separately; they are recomputed from the block counts in the fixed
// region order (super, inode bitmap, data bitmap, inode table, data area).
const onDiskSuperblockSize = 4 + 4*5 + 8 + 4 + 4

type onDiskSuperblock struct {
	Magic             uint32
	SuperBlocks       uint32
	InodeBitmapBlocks uint32
	DataBitmapBlocks  uint32
	InodeTableBlocks  uint32
	DataAreaBlocks    uint32
	Usage             uint64
	MaxIno            uint32
	MaxFileBlocks     uint32
}

func (s *onDiskSuperblock) marshal() []byte {
	buf := make([]byte, onDiskSuperblockSize)
	o := 0
	binary.LittleEndian.PutUint32(buf[o:], s.Magic)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:], s.SuperBlocks)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:], s.InodeBitmapBlocks)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:], s.DataBitmapBlocks)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:], s.InodeTableBlocks)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:], s.DataAreaBlocks)
	o += 4
	binary.LittleEndian.PutUint64(buf[o:], s.Usage)
	o += 8
	binary.LittleEndian.PutUint32(buf[o:], s.MaxIno)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:], s.MaxFileBlocks)
	return buf
}

func unmarshalSuperblock(buf []byte) *onDiskSuperblock {
	s := &onDiskSuperblock{}
	o := 0
	s.Magic = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	s.SuperBlocks = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	s.InodeBitmapBlocks = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	s.DataBitmapBlocks = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	s.InodeTableBlocks = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	s.DataAreaBlocks = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	s.Usage = binary.LittleEndian.Uint64(buf[o:])
	o += 8
	s.MaxIno = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	s.MaxFileBlocks = binary.LittleEndian.Uint32(buf[o:])
	return s
}

// Superblock is the in-memory, singleton-per-mount handle spec.md §3
// describes. Unlike the original C source's single process-global
// `struct newfs_super`, it is an explicit value threaded through every
// entry point (DESIGN.md, "Global state"), which is what lets tests mount
// two independent filesystems side by side.
type Superblock struct {
	mu sync.Mutex

	dev Device
	io  *BlockIO

	blockSize int

	superBlocks       int64
	inodeBitmapBlocks int64
	dataBitmapBlocks  int64
	inodeTableBlocks  int64
	dataAreaBlocks    int64

	superOff       int64
	inodeBitmapOff int64
	dataBitmapOff  int64
	inodeTableOff  int64
	dataAreaOff    int64

	inodeBitmap *Bitmap
	dataBitmap  *Bitmap
	alloc       allocator

	usage         int64
	maxIno        int
	maxFileBlocks int

	root    *Dentry
	mounted bool
}

// BlockSize returns the logical block size (2x the device I/O unit).
func (sb *Superblock) BlockSize() int { return sb.blockSize }

// Root returns the mount's root dentry.
func (sb *Superblock) Root() *Dentry { return sb.root }

// blockOffset returns the byte offset of logical block index i.
func (sb *Superblock) blockOffset(i int64) int64 { return i * int64(sb.blockSize) }

// inodeOffset returns the byte offset of inode ino's on-disk record.
func (sb *Superblock) inodeOffset(ino uint32) int64 {
	return sb.blockOffset(sb.inodeTableOff) + int64(ino)*int64(sb.blockSize)
}

// dataBlockOffset returns the byte offset of data-area block idx.
func (sb *Superblock) dataBlockOffset(idx int) int64 {
	return sb.blockOffset(sb.dataAreaOff) + int64(idx)*int64(sb.blockSize)
}

// Mount opens dev, reads (or initializes) the on-disk layout, and
// publishes a root dentry bound to inode 0. Mirrors the seven-step
// protocol in spec.md §4.2.
func Mount(dev Device) (*Superblock, error) {
	ioUnit := dev.IOUnitSize()
	if ioUnit <= 0 {
		return nil, fmt.Errorf("%w: device reports non-positive I/O unit size", ErrIO)
	}

	sb := &Superblock{
		dev:       dev,
		io:        NewBlockIO(dev),
		blockSize: ioUnit * 2,
	}

	raw, err := sb.io.Read(0, onDiskSuperblockSize)
	if err != nil {
		return nil, err
	}
	disk := unmarshalSuperblock(raw)

	needsInit := disk.Magic != Magic
	if needsInit {
		log.Printf("newfs: magic mismatch, formatting fresh layout")
		disk = &onDiskSuperblock{
			Magic:             Magic,
			SuperBlocks:       SuperBlocks,
			InodeBitmapBlocks: InodeBitmapBlocks,
			DataBitmapBlocks:  DataBitmapBlocks,
			InodeTableBlocks:  InodeTableBlocks,
			DataAreaBlocks:    DataAreaBlocks,
		}
	}

	sb.superBlocks = int64(disk.SuperBlocks)
	sb.inodeBitmapBlocks = int64(disk.InodeBitmapBlocks)
	sb.dataBitmapBlocks = int64(disk.DataBitmapBlocks)
	sb.inodeTableBlocks = int64(disk.InodeTableBlocks)
	sb.dataAreaBlocks = int64(disk.DataAreaBlocks)
	sb.usage = int64(disk.Usage)

	sb.superOff = 0
	sb.inodeBitmapOff = sb.superOff + sb.superBlocks
	sb.dataBitmapOff = sb.inodeBitmapOff + sb.inodeBitmapBlocks
	sb.inodeTableOff = sb.dataBitmapOff + sb.dataBitmapBlocks
	sb.dataAreaOff = sb.inodeTableOff + sb.inodeTableBlocks

	sb.maxIno = int(sb.inodeTableBlocks)
	sb.maxFileBlocks = MaxFileBlocks
	if !needsInit && disk.MaxFileBlocks != 0 {
		sb.maxFileBlocks = int(disk.MaxFileBlocks)
	}
	if !needsInit && disk.MaxIno != 0 {
		sb.maxIno = int(disk.MaxIno)
	}

	inodeBitmapBuf, err := sb.io.Read(sb.blockOffset(sb.inodeBitmapOff), int(sb.inodeBitmapBlocks)*sb.blockSize)
	if err != nil {
		return nil, err
	}
	dataBitmapBuf, err := sb.io.Read(sb.blockOffset(sb.dataBitmapOff), int(sb.dataBitmapBlocks)*sb.blockSize)
	if err != nil {
		return nil, err
	}
	sb.inodeBitmap = NewBitmapFromBytes(append([]byte(nil), inodeBitmapBuf...))
	sb.dataBitmap = NewBitmapFromBytes(append([]byte(nil), dataBitmapBuf...))
	sb.alloc = allocator{
		inodeMap:      sb.inodeBitmap,
		dataMap:       sb.dataBitmap,
		inoMax:        sb.maxIno,
		dataScanLimit: int(sb.inodeBitmapBlocks) * sb.blockSize * 8,
		dataBlks:      int(sb.dataAreaBlocks),
	}

	sb.root = &Dentry{Name: "/", Ino: RootIno, Type: TypeDir}

	if needsInit {
		ino, err := sb.alloc.allocInode()
		if err != nil {
			return nil, err
		}
		if ino != int(RootIno) {
			return nil, fmt.Errorf("%w: fresh inode bitmap did not yield root at index 0", ErrIO)
		}
		rootInode := &Inode{sb: sb, Ino: RootIno, Type: TypeDir, Link: 2, Blocks: newBlocks(), Dentry: sb.root}
		sb.root.Inode = rootInode
		if err := sb.syncInode(rootInode); err != nil {
			return nil, err
		}
	}

	rootInode, err := sb.readInode(sb.root, RootIno)
	if err != nil {
		return nil, err
	}
	sb.root.Inode = rootInode
	sb.mounted = true

	log.Printf("newfs: mounted (blockSize=%d maxIno=%d dataBlks=%d)", sb.blockSize, sb.maxIno, sb.dataAreaBlocks)
	return sb, nil
}

// Unmount recursively synchronizes the root, writes the superblock and
// both bitmaps, and closes the device. It is idempotent if the mount was
// never fully established.
func (sb *Superblock) Unmount() error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !sb.mounted {
		return nil
	}

	if sb.root != nil && sb.root.Inode != nil {
		if err := sb.syncInode(sb.root.Inode); err != nil {
			return err
		}
	}

	disk := &onDiskSuperblock{
		Magic:             Magic,
		SuperBlocks:       uint32(sb.superBlocks),
		InodeBitmapBlocks: uint32(sb.inodeBitmapBlocks),
		DataBitmapBlocks:  uint32(sb.dataBitmapBlocks),
		InodeTableBlocks:  uint32(sb.inodeTableBlocks),
		DataAreaBlocks:    uint32(sb.dataAreaBlocks),
		Usage:             uint64(sb.usage),
		MaxIno:            uint32(sb.maxIno),
		MaxFileBlocks:     uint32(sb.maxFileBlocks),
	}
	if err := sb.io.Write(0, disk.marshal()); err != nil {
		return err
	}

	if err := sb.io.Write(sb.blockOffset(sb.inodeBitmapOff), sb.inodeBitmap.Bytes()); err != nil {
		return err
	}
	if err := sb.io.Write(sb.blockOffset(sb.dataBitmapOff), sb.dataBitmap.Bytes()); err != nil {
		return err
	}

	sb.inodeBitmap = nil
	sb.dataBitmap = nil
	sb.mounted = false

	log.Printf("newfs: unmounted (usage=%d bytes)", sb.usage)
	return sb.dev.Close()
}
