package newfs

import "io/fs"

// DefaultPerm is the permission bits synthesized for every inode.
// Permissions are treated as permissive throughout (spec.md §1, out of
// scope), matching original_source's NFS_DEFAULT_PERM (0777).
const DefaultPerm fs.FileMode = 0777

// Mode returns the fs.FileMode for t: the type bits plus DefaultPerm.
// Grounded on the teacher's Type.Mode() (type.go) and UnixToMode
// (mode.go), collapsed to this format's three types.
func (t FileType) Mode() fs.FileMode {
	switch t {
	case TypeDir:
		return fs.ModeDir | DefaultPerm
	case TypeSym:
		return fs.ModeSymlink | DefaultPerm
	default:
		return DefaultPerm
	}
}
