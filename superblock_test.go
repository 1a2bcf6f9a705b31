package newfs

import "testing"

const testIOUnit = 128 // blockSize=256, comfortably fits onDiskDentrySize(133) and onDiskInodeSize

func newTestDevice() *MemDevice {
	return NewMemDevice(ImageSize(testIOUnit), testIOUnit)
}

func TestMountOnBlankDeviceFormatsFreshRoot(t *testing.T) {
	dev := newTestDevice()
	sb, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if sb.Root() == nil || sb.Root().Inode == nil {
		t.Fatalf("expected a materialized root after a fresh mount")
	}
	if sb.Root().Inode.Ino != RootIno {
		t.Fatalf("expected root inode number %d, got %d", RootIno, sb.Root().Inode.Ino)
	}
	if sb.Root().Inode.Type != TypeDir {
		t.Fatalf("expected root to be a directory")
	}
	if err := sb.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
}

func TestUnmountIsIdempotent(t *testing.T) {
	sb, err := Mount(newTestDevice())
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := sb.Unmount(); err != nil {
		t.Fatalf("first Unmount: %v", err)
	}
	if err := sb.Unmount(); err != nil {
		t.Fatalf("second Unmount should be a no-op, got: %v", err)
	}
}

// TestRemountRoundTrip covers P4: content written before an Unmount must
// be visible after mounting a fresh Superblock over a snapshot of the
// same bytes.
func TestRemountRoundTrip(t *testing.T) {
	dev := newTestDevice()
	sb, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	child := &Dentry{Name: "greeting", Parent: sb.Root()}
	if _, err := sb.allocInodeFor(child, TypeReg); err != nil {
		t.Fatalf("allocInodeFor: %v", err)
	}
	allocDentry(sb.Root().Inode, child)
	copy(child.Inode.Data, []byte("hello"))
	child.Inode.Size = 5
	child.Inode.Dirty[0] = true

	if err := sb.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	snap := NewMemDeviceFromBytes(dev.Snapshot(), testIOUnit)

	sb2, err := Mount(snap)
	if err != nil {
		t.Fatalf("remount: %v", err)
	}
	defer sb2.Unmount()

	found := findChildStrict(sb2.Root().Inode, "greeting")
	if found == nil {
		t.Fatalf("expected to find greeting after remount")
	}
	if err := sb2.materialize(found); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if found.Inode.Size != 5 || string(found.Inode.Data[:5]) != "hello" {
		t.Fatalf("expected surviving content %q, got %q", "hello", found.Inode.Data[:found.Inode.Size])
	}
	if found.Inode.DataBlkCnt != 1 {
		t.Fatalf("expected data_blk_cnt=1 to have survived the round trip, got %d", found.Inode.DataBlkCnt)
	}
	if found.Inode.Blocks[0] == -1 {
		t.Fatalf("expected block 0 to be assigned after remount")
	}
}

// TestInodeAllocationRespectsInodeTableCap proves maxIno is capped by the
// inode table's actual block count (InodeTableBlocks), not the inode
// bitmap's raw bit capacity — allocating past the table would otherwise
// place an inode record inside the data area on sync.
func TestInodeAllocationRespectsInodeTableCap(t *testing.T) {
	sb, err := Mount(newTestDevice())
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer sb.Unmount()

	if sb.maxIno != InodeTableBlocks {
		t.Fatalf("expected maxIno=%d (InodeTableBlocks), got %d", InodeTableBlocks, sb.maxIno)
	}

	// root already holds inode 0; InodeTableBlocks-1 more should fit.
	for i := 0; i < InodeTableBlocks-1; i++ {
		if _, err := sb.alloc.allocInode(); err != nil {
			t.Fatalf("allocInode #%d: expected success within the table cap, got %v", i, err)
		}
	}
	if _, err := sb.alloc.allocInode(); err != ErrNoSpace {
		t.Fatalf("expected ErrNoSpace once the inode table is full, got %v", err)
	}
}
