// Package newfs implements a small userspace, block-addressed,
// POSIX-like filesystem: a fixed-layout superblock and bitmap allocator,
// an inode/dentry object graph materialized lazily from disk, a
// block-aligned I/O adapter, a path resolver, and a namespace operations
// façade (FileSystem) that a FUSE binding or CLI tool can drive directly.
//
// A typical program formats or opens a backing device, mounts it, and
// talks to the result entirely through FileSystem:
//
//	dev, err := newfs.OpenFileDevice("disk.img", 0)
//	fsys, err := newfs.MountFS(dev)
//	defer fsys.Unmount()
//
//	fsys.Mkdir("/home")
//	fsys.Mknod("/home/readme")
//	fsys.Write("/home/readme", []byte("hello"), 0)
package newfs
