package newfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
// These map to the POSIX-style error taxonomy the on-disk format was designed against.
var (
	// ErrNotFound is returned when path resolution fails at or before the final component.
	ErrNotFound = errors.New("newfs: no such file or directory")

	// ErrExists is returned when a create/rename target already exists.
	ErrExists = errors.New("newfs: file exists")

	// ErrIsDir is returned when an operation requires a regular file but found a directory.
	ErrIsDir = errors.New("newfs: is a directory")

	// ErrUnsupported is returned when an operation requires a directory but found a
	// regular file, or a symlink is exercised (the on-disk format reserves the type
	// but no operation resolves it).
	ErrUnsupported = errors.New("newfs: operation not supported on this inode type")

	// ErrSeek is returned when an offset lands past end-of-file on read or write.
	ErrSeek = errors.New("newfs: illegal seek")

	// ErrNoSpace is returned when a bitmap is exhausted or a per-file block cap is reached.
	ErrNoSpace = errors.New("newfs: no space left on device")

	// ErrIO is returned when the underlying device read or write failed. The
	// returned error wraps ErrIO (match it with errors.Is); the causing
	// error's text is included in the message but is not itself wrapped.
	ErrIO = errors.New("newfs: device i/o error")

	// ErrInvalid is returned for attempts to drop the root dentry/inode.
	ErrInvalid = errors.New("newfs: invalid operation")

	// ErrAccess is returned when an access() check is denied.
	ErrAccess = errors.New("newfs: permission denied")

	// errDentryNotFound is an internal detail surfaced while unlinking a dentry
	// from its parent's child list; callers observe it wrapped or translated.
	errDentryNotFound = errors.New("newfs: dentry not found in parent")

	// errCorruptDirectory signals a directory inode whose child_count
	// disagrees with its assigned block pointers — it should never
	// surface from a filesystem this package formatted itself.
	errCorruptDirectory = errors.New("newfs: directory block chain exhausted before child_count")
)
