//go:build linux

package newfs

import (
	"golang.org/x/sys/unix"
)

// Linux block-device ioctl numbers, matching <linux/fs.h>. Grounded on the
// teacher's platform-specific split (inode_linux.go / inode_darwin.go).
const (
	blkSSZGet    = 0x1268 // BLKSSZGET: logical sector size
	blkGetSize64 = 0x80081272
)

// probeBlockDevice asks the kernel for the device's logical sector size and
// total size via ioctl. ok is false if f does not refer to a block device
// or the ioctls are unsupported, in which case the caller falls back to
// Stat-derived defaults.
func probeBlockDevice(f interface{ Fd() uintptr }) (ioUnit int, size int64, ok bool) {
	sz, err := unix.IoctlGetInt(int(f.Fd()), blkSSZGet)
	if err != nil {
		return 0, 0, false
	}

	total, err := unix.IoctlGetUint64(int(f.Fd()), blkGetSize64)
	if err != nil {
		return 0, 0, false
	}

	return sz, int64(total), true
}
