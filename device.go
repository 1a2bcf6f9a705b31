package newfs

import (
	"fmt"
	"io"
	"os"
)

// Device is the driver-level interface the filesystem mounts onto. It
// models a block-device-like driver: geometry is fixed at open time, reads
// and writes are expressed as byte ranges (alignment to the I/O unit is the
// BlockIO adapter's job, not the device's), and the device never retries
// failed operations.
type Device interface {
	// IOUnitSize returns the device's native I/O unit size in bytes. One
	// logical filesystem block equals two I/O units.
	IOUnitSize() int
	// Size returns the total addressable size of the device in bytes.
	Size() int64
	io.ReaderAt
	io.WriterAt
	io.Closer
}

// defaultIOUnitSize is used when a device's native geometry can't be
// probed (a plain regular file standing in for a disk image, or any
// non-Linux host).
const defaultIOUnitSize = 512

// FileDevice backs a Device onto an *os.File: either a real block device
// node, in which case geometry is probed with platform ioctls (see
// device_linux.go), or a plain regular file used as a disk image, in which
// case the I/O unit defaults to 512 bytes and the size comes from Stat.
type FileDevice struct {
	f      *os.File
	ioUnit int
	size   int64
}

// OpenFileDevice opens path and probes its geometry. ioUnitOverride, if
// non-zero, takes precedence over any probed or default value — this is
// how tests and Config.WithIOUnitSize pin a small geometry for a
// file-backed image.
func OpenFileDevice(path string, ioUnitOverride int) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}

	dev := &FileDevice{f: f}

	if ioUnitOverride > 0 {
		dev.ioUnit = ioUnitOverride
	}

	if err := dev.probe(); err != nil {
		f.Close()
		return nil, err
	}

	return dev, nil
}

// probe fills in ioUnit/size from the most precise source available: block
// device ioctls when the path refers to a block device, Stat otherwise.
func (d *FileDevice) probe() error {
	fi, err := d.f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat: %v", ErrIO, err)
	}

	if fi.Mode()&os.ModeDevice != 0 {
		if ioUnit, size, ok := probeBlockDevice(d.f); ok {
			if d.ioUnit == 0 {
				d.ioUnit = ioUnit
			}
			d.size = size
			return nil
		}
	}

	if d.ioUnit == 0 {
		d.ioUnit = defaultIOUnitSize
	}
	d.size = fi.Size()
	return nil
}

func (d *FileDevice) IOUnitSize() int { return d.ioUnit }
func (d *FileDevice) Size() int64     { return d.size }

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	n, err := d.f.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: read at %d: %v", ErrIO, off, err)
	}
	return n, nil
}

func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	n, err := d.f.WriteAt(p, off)
	if err != nil {
		return n, fmt.Errorf("%w: write at %d: %v", ErrIO, off, err)
	}
	return n, nil
}

func (d *FileDevice) Close() error {
	return d.f.Close()
}

// CreateFileDevice creates (or truncates) a regular file of the given size
// to stand in for a disk image, then opens it as a FileDevice. This is the
// format-time step a mkfs-like tool uses before the first Mount.
func CreateFileDevice(path string, size int64, ioUnitOverride int) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrIO, path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: truncate %s: %v", ErrIO, path, err)
	}
	f.Close()

	return OpenFileDevice(path, ioUnitOverride)
}

// MemDevice is an in-memory Device, the equivalent of mock_test.go's
// mockReader in the teacher repo, generalized to also accept writes. It
// lets the full mount/unmount/remount cycle (P4, P5, and the S1-S6
// scenarios) run without touching the filesystem.
type MemDevice struct {
	buf    []byte
	ioUnit int
}

// NewMemDevice allocates a zeroed in-memory device of size bytes with the
// given I/O unit size.
func NewMemDevice(size int64, ioUnit int) *MemDevice {
	return &MemDevice{buf: make([]byte, size), ioUnit: ioUnit}
}

// NewMemDeviceFromBytes wraps buf directly as an in-memory device, the
// counterpart to Snapshot: feeding a prior Snapshot back in simulates
// mounting a fresh Superblock over the same bytes (a remount) without
// sharing memory with the device that produced the snapshot.
func NewMemDeviceFromBytes(buf []byte, ioUnit int) *MemDevice {
	return &MemDevice{buf: buf, ioUnit: ioUnit}
}

func (m *MemDevice) IOUnitSize() int { return m.ioUnit }
func (m *MemDevice) Size() int64     { return int64(len(m.buf)) }

func (m *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.buf)) {
		return 0, fmt.Errorf("%w: read at %d out of range", ErrIO, off)
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, fmt.Errorf("%w: write at %d out of range", ErrIO, off)
	}
	n := copy(m.buf[off:], p)
	return n, nil
}

func (m *MemDevice) Close() error { return nil }

// Snapshot returns a copy of the device's current contents, useful for
// feeding a fresh MemDevice to simulate a remount (P4/P5) without sharing
// memory between the two mounts.
func (m *MemDevice) Snapshot() []byte {
	out := make([]byte, len(m.buf))
	copy(out, m.buf)
	return out
}
