package newfs

// TotalBlocks is the fixed total region size in blocks: superblock +
// inode bitmap + data bitmap + inode table + data area.
const TotalBlocks = SuperBlocks + InodeBitmapBlocks + DataBitmapBlocks + InodeTableBlocks + DataAreaBlocks

// ImageSize returns the total byte size of an image with the given I/O
// unit size (block size is always 2x the I/O unit).
func ImageSize(ioUnit int) int64 {
	return int64(TotalBlocks) * int64(ioUnit) * 2
}

// Format creates a zero-filled backing file at path sized to hold the
// fixed on-disk layout for the given I/O unit size, ready for a first
// Mount (which will see a magic mismatch and lay down a fresh root).
// This is the one-time "make filesystem" step; original_source has no
// separate mkfs tool of its own (newfs_mount formats in place the first
// time it is run against a blank device), but a file-backed image needs
// to exist and be the right size before that can happen.
func Format(path string, ioUnit int) (*FileDevice, error) {
	return CreateFileDevice(path, ImageSize(ioUnit), ioUnit)
}
