package newfs

// Handle is the open-file/open-dir token Open and OpenDir hand back,
// mirroring original_source's struct file_info (a malloc'd box around the
// resolved inode stashed in fuse_file_info.fh). Nothing here does I/O of
// its own: Read/Write/ReadDir above already take a path and re-resolve,
// so a Handle mainly pins down that the path existed (and, for OpenDir,
// was a directory) at open time.
type Handle struct {
	dentry *Dentry
}

// Ino is the handle's underlying inode number.
func (h *Handle) Ino() uint32 { return h.dentry.Ino }

// Type is the handle's underlying inode type.
func (h *Handle) Type() FileType { return h.dentry.Type }

// Open resolves path and returns a Handle for it. Returns ErrNotFound if
// path does not exist.
func (f *FileSystem) Open(path string) (*Handle, error) {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	d, found, _, err := f.sb.Lookup(path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &Handle{dentry: d}, nil
}

// OpenDir resolves path and returns a Handle for it. Returns ErrNotFound
// if path does not exist and ErrUnsupported if it is not a directory.
func (f *FileSystem) OpenDir(path string) (*Handle, error) {
	f.sb.mu.Lock()
	defer f.sb.mu.Unlock()

	d, found, _, err := f.sb.Lookup(path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	if d.Inode.Type != TypeDir {
		return nil, ErrUnsupported
	}
	return &Handle{dentry: d}, nil
}
