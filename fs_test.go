package newfs_test

import (
	"fmt"
	"testing"

	"github.com/aerfio/newfs"
)

const testIOUnit = 128

func mustMount(t *testing.T) *newfs.FileSystem {
	t.Helper()
	dev := newfs.NewMemDevice(newfs.ImageSize(testIOUnit), testIOUnit)
	fsys, err := newfs.MountFS(dev)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}
	return fsys
}

func TestMkdirAndReadDir(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	if err := fsys.Mkdir("/a"); err != nil {
		t.Fatalf("Mkdir /a: %v", err)
	}
	if err := fsys.Mkdir("/a"); err != newfs.ErrExists {
		t.Fatalf("expected ErrExists creating /a twice, got %v", err)
	}
	if err := fsys.Mkdir("/missing/a"); err != newfs.ErrNotFound {
		t.Fatalf("expected ErrNotFound for a missing parent, got %v", err)
	}

	entry, err := fsys.ReadDir("/", 0)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if entry == nil || entry.Name != "a" || !entry.Type.IsDir() {
		t.Fatalf("expected the first root entry to be directory 'a', got %+v", entry)
	}

	if entry, err := fsys.ReadDir("/", 1); err != nil || entry != nil {
		t.Fatalf("expected no second entry, got %+v, %v", entry, err)
	}
}

func TestMknodWriteRead(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	if err := fsys.Mknod("/file"); err != nil {
		t.Fatalf("Mknod: %v", err)
	}

	n, err := fsys.Write("/file", []byte("hello world"), 0)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 11 {
		t.Fatalf("expected 11 bytes written, got %d", n)
	}

	buf, err := fsys.Read("/file", 0, 11)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", buf)
	}

	// a partial overwrite in the middle must not disturb the surrounding
	// bytes
	if _, err := fsys.Write("/file", []byte("WORLD"), 6); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	buf, err = fsys.Read("/file", 0, 11)
	if err != nil {
		t.Fatalf("Read after overwrite: %v", err)
	}
	if string(buf) != "hello WORLD" {
		t.Fatalf("expected %q, got %q", "hello WORLD", buf)
	}
}

func TestWriteBeyondSeekIsRejected(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	if err := fsys.Mknod("/file"); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	if _, err := fsys.Write("/file", []byte("x"), 100); err != newfs.ErrSeek {
		t.Fatalf("expected ErrSeek writing far past the current end, got %v", err)
	}
}

// TestWriteBeyondCapacityFails exercises the fixed MaxFileBlocks capacity:
// a write whose end exceeds MaxFileBlocks*blockSize must fail immediately
// with ErrNoSpace rather than corrupt memory.
func TestWriteBeyondCapacityFails(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	if err := fsys.Mknod("/file"); err != nil {
		t.Fatalf("Mknod: %v", err)
	}

	cap := newfs.MaxFileBlocks * (testIOUnit * 2)
	big := make([]byte, cap)
	if _, err := fsys.Write("/file", big, 0); err != nil {
		t.Fatalf("a write that exactly fills the buffer should succeed: %v", err)
	}
	if _, err := fsys.Write("/file", []byte{1}, int64(cap)); err != newfs.ErrNoSpace {
		t.Fatalf("expected ErrNoSpace writing past full capacity, got %v", err)
	}
}

func TestTruncateGrowsAndShrinks(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	if err := fsys.Mknod("/file"); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	if _, err := fsys.Write("/file", []byte("0123456789"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := fsys.Truncate("/file", 4); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	st, err := fsys.GetAttr("/file")
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if st.Size != 4 {
		t.Fatalf("expected size 4 after shrink, got %d", st.Size)
	}

	if err := fsys.Truncate("/file", 20); err != nil {
		t.Fatalf("grow: %v", err)
	}
	buf, err := fsys.Read("/file", 0, 20)
	if err != nil {
		t.Fatalf("Read after grow: %v", err)
	}
	if string(buf[:4]) != "0123" {
		t.Fatalf("expected surviving prefix %q, got %q", "0123", buf[:4])
	}
	for i := 4; i < 20; i++ {
		if buf[i] != 0 {
			t.Fatalf("expected zero-fill at byte %d after growing, got %#x", i, buf[i])
		}
	}
}

func TestUnlinkAndRmdir(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	if err := fsys.Mkdir("/dir"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := fsys.Mknod("/dir/file"); err != nil {
		t.Fatalf("Mknod: %v", err)
	}

	if err := fsys.Unlink("/dir"); err != newfs.ErrIsDir {
		t.Fatalf("expected ErrIsDir unlinking a directory, got %v", err)
	}
	if err := fsys.Rmdir("/dir/file"); err != newfs.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported rmdir-ing a regular file, got %v", err)
	}

	if err := fsys.Rmdir("/dir"); err != nil {
		t.Fatalf("Rmdir a non-empty directory should recursively drop its children: %v", err)
	}
	if _, found, _, err := fsys.Superblock().Lookup("/dir"); err != nil || found {
		t.Fatalf("expected /dir to be gone after Rmdir, found=%v err=%v", found, err)
	}
}

func TestRenameMovesAndReparents(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	if err := fsys.Mkdir("/src"); err != nil {
		t.Fatalf("Mkdir /src: %v", err)
	}
	if err := fsys.Mkdir("/dst"); err != nil {
		t.Fatalf("Mkdir /dst: %v", err)
	}
	if err := fsys.Mknod("/src/file"); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	if _, err := fsys.Write("/src/file", []byte("payload"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := fsys.Rename("/src/file", "/dst/renamed"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if _, found, _, _ := fsys.Superblock().Lookup("/src/file"); found {
		t.Fatalf("expected /src/file to no longer resolve after rename")
	}
	buf, err := fsys.Read("/dst/renamed", 0, 7)
	if err != nil {
		t.Fatalf("Read after rename: %v", err)
	}
	if string(buf) != "payload" {
		t.Fatalf("expected content to survive rename, got %q", buf)
	}
}

func TestRenameRejectsExistingDestination(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	if err := fsys.Mknod("/a"); err != nil {
		t.Fatalf("Mknod /a: %v", err)
	}
	if err := fsys.Mknod("/b"); err != nil {
		t.Fatalf("Mknod /b: %v", err)
	}
	if err := fsys.Rename("/a", "/b"); err != newfs.ErrExists {
		t.Fatalf("expected ErrExists renaming onto an existing name, got %v", err)
	}
}

func TestAccess(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	if err := fsys.Mknod("/file"); err != nil {
		t.Fatalf("Mknod: %v", err)
	}

	for _, mode := range []newfs.AccessMode{newfs.ROK, newfs.WOK, newfs.XOK} {
		if err := fsys.Access("/does/not/exist", mode); err != nil {
			t.Fatalf("R/W/X access checks must succeed unconditionally, got %v for mode %v", err, mode)
		}
	}

	if err := fsys.Access("/file", newfs.OK); err != nil {
		t.Fatalf("F_OK on an existing path should succeed, got %v", err)
	}
	if err := fsys.Access("/missing", newfs.OK); err != newfs.ErrAccess {
		t.Fatalf("F_OK on a missing path should fail, got %v", err)
	}
}

func TestOpenAndOpenDir(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	if err := fsys.Mkdir("/dir"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := fsys.Mknod("/file"); err != nil {
		t.Fatalf("Mknod: %v", err)
	}

	if _, err := fsys.Open("/missing"); err != newfs.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := fsys.OpenDir("/file"); err != newfs.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported opening a regular file as a directory, got %v", err)
	}

	h, err := fsys.OpenDir("/dir")
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	if !h.Type().IsDir() {
		t.Fatalf("expected a directory handle")
	}
}

// TestDirectorySpansMultipleBlocks exercises the dentry stream/sync path
// across more than one data block: at testIOUnit=128 (blockSize=256),
// onDiskDentrySize (133) is more than half a block, so each directory
// entry occupies a whole block of its own — MaxFileBlocks entries is
// the most a directory can hold at this geometry, and this test fills
// it exactly.
func TestDirectorySpansMultipleBlocks(t *testing.T) {
	dev := newfs.NewMemDevice(newfs.ImageSize(testIOUnit), testIOUnit)
	fsys, err := newfs.MountFS(dev)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}

	const n = newfs.MaxFileBlocks
	for i := 0; i < n; i++ {
		name := "/f" + string(rune('a'+i))
		if err := fsys.Mknod(name); err != nil {
			t.Fatalf("Mknod %s: %v", name, err)
		}
	}

	seen := map[string]bool{}
	for i := 0; ; i++ {
		e, err := fsys.ReadDir("/", i)
		if err != nil {
			t.Fatalf("ReadDir at %d: %v", i, err)
		}
		if e == nil {
			break
		}
		seen[e.Name] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d directory entries, saw %d", n, len(seen))
	}

	// Unmount must actually succeed: n entries, one dentry per block at
	// this geometry, exactly fills the root directory's MaxFileBlocks
	// block-pointer slots.
	if err := fsys.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	snap := newfs.NewMemDeviceFromBytes(dev.Snapshot(), testIOUnit)
	fsys2, err := newfs.MountFS(snap)
	if err != nil {
		t.Fatalf("remount: %v", err)
	}
	defer fsys2.Unmount()

	seenAfterRemount := map[string]bool{}
	for i := 0; ; i++ {
		e, err := fsys2.ReadDir("/", i)
		if err != nil {
			t.Fatalf("ReadDir after remount at %d: %v", i, err)
		}
		if e == nil {
			break
		}
		seenAfterRemount[e.Name] = true
	}
	if len(seenAfterRemount) != n {
		t.Fatalf("expected %d directory entries to survive remount, saw %d", n, len(seenAfterRemount))
	}
}

// TestDataBlkCntSurvivesRemount exercises the exact Mknod+Write+Unmount
// path that never goes through Truncate: data_blk_cnt must reflect the
// blocks actually written, not just whatever Truncate happens to set.
func TestDataBlkCntSurvivesRemount(t *testing.T) {
	dev := newfs.NewMemDevice(newfs.ImageSize(testIOUnit), testIOUnit)
	fsys, err := newfs.MountFS(dev)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}

	if err := fsys.Mknod("/file"); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	if _, err := fsys.Write("/file", []byte("hello"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := fsys.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	snap := newfs.NewMemDeviceFromBytes(dev.Snapshot(), testIOUnit)

	fsys2, err := newfs.MountFS(snap)
	if err != nil {
		t.Fatalf("remount: %v", err)
	}
	defer fsys2.Unmount()

	st, err := fsys2.GetAttr("/file")
	if err != nil {
		t.Fatalf("GetAttr after remount: %v", err)
	}
	if st.Blocks != 1 {
		t.Fatalf("expected 1 block after remount, got %d", st.Blocks)
	}
	buf, err := fsys2.Read("/file", 0, 5)
	if err != nil || string(buf) != "hello" {
		t.Fatalf("expected surviving content %q, got %q err=%v", "hello", buf, err)
	}
}

// TestMknodRespectsInodeTableCap proves the inode table, not the inode
// bitmap's raw bit capacity, bounds how many inodes the namespace as a
// whole can hold: past InodeTableBlocks, every further inode record
// would alias into the data area on sync. The in-memory dentry list has
// no children cap of its own (that only bites on sync, once a directory
// needs more than MaxFileBlocks data blocks — see
// TestDirectorySpansMultipleBlocks), so a single flat directory is
// enough to drive inode allocation straight to the table's real cap.
func TestMknodRespectsInodeTableCap(t *testing.T) {
	fsys := mustMount(t)

	// root already holds inode 0; InodeTableBlocks-1 more fit.
	for i := 0; i < newfs.InodeTableBlocks-1; i++ {
		name := fmt.Sprintf("/f%d", i)
		if err := fsys.Mknod(name); err != nil {
			t.Fatalf("Mknod %s: %v", name, err)
		}
	}

	if err := fsys.Mknod("/overflow"); err != newfs.ErrNoSpace {
		t.Fatalf("expected ErrNoSpace once the inode table is full, got %v", err)
	}
}

func TestGetAttrRoot(t *testing.T) {
	fsys := mustMount(t)
	defer fsys.Unmount()

	st, err := fsys.GetAttr("/")
	if err != nil {
		t.Fatalf("GetAttr /: %v", err)
	}
	if !st.Type.IsDir() {
		t.Fatalf("expected root to report as a directory")
	}
	if st.Links != 2 {
		t.Fatalf("expected root link count 2, got %d", st.Links)
	}
}
